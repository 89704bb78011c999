package retrieval

import (
	"context"
	"strings"

	"github.com/uemahub/sabia/internal/log"
	"github.com/uemahub/sabia/internal/provider"
	"github.com/uemahub/sabia/internal/router"
	"github.com/uemahub/sabia/internal/textnorm"
)

// Model-facing strings. Tool failures are reported to the model as text,
// never as transport errors, so the loop can still produce an answer.
const (
	msgToolError = "ERRO TÉCNICO NA FERRAMENTA — não tente novamente nesta resposta."
	msgTruncated = "\n[...resultado truncado]"
)

// searcher is the slice of *Index the tools need.
type searcher interface {
	Search(ctx context.Context, vec []float32, document string, limit int) ([]Passage, error)
}

// Tool answers queries against exactly one source document.
type Tool struct {
	Name        string
	Description string
	Topic       router.Topic

	document string
	topK     int
	fetchK   int // 0 means pure similarity, no re-ranking
	lambda   float64
	maxChars int
	notFound string

	index    searcher
	embedder Embedder
	logger   log.Logger
}

// Retrieve returns the selected passages for query, most relevant first.
// The query is diacritics-stripped and lowercased before lookup to match
// the ASCII-normalized index.
func (t *Tool) Retrieve(ctx context.Context, query string) ([]Passage, error) {
	normalized := textnorm.ASCII(query)
	t.logger.Debug("tool query", "tool", t.Name, "query", query, "normalized", normalized)

	vec, err := t.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, err
	}

	fetch := t.topK
	if t.fetchK > fetch {
		fetch = t.fetchK
	}
	passages, err := t.index.Search(ctx, vec, t.document, fetch)
	if err != nil {
		return nil, err
	}

	if t.fetchK > 0 && len(passages) > t.topK {
		candidates := make([][]float32, len(passages))
		for i, p := range passages {
			candidates[i] = p.Embedding
		}
		picked := maximalMarginalRelevance(vec, candidates, t.lambda, t.topK)
		reranked := make([]Passage, 0, len(picked))
		for _, i := range picked {
			reranked = append(reranked, passages[i])
		}
		passages = reranked
	}

	return passages, nil
}

// Invoke runs Retrieve and renders the result as the string handed back to
// the model: passages joined by a separator line, truncated to the tool's
// character limit.
func (t *Tool) Invoke(ctx context.Context, query string) string {
	passages, err := t.Retrieve(ctx, query)
	if err != nil {
		t.logger.Error("tool failed", "tool", t.Name, "error", err)
		return msgToolError
	}

	blocks := make([]string, 0, len(passages))
	for _, p := range passages {
		if content := strings.TrimSpace(p.Content); content != "" {
			blocks = append(blocks, content)
		}
	}
	if len(blocks) == 0 {
		return t.notFound
	}

	result := strings.Join(blocks, "\n---\n")
	if len(result) > t.maxChars {
		result = result[:t.maxChars] + msgTruncated
	}
	return result
}

// Toolset holds the document-scoped tools, in a fixed offer order.
type Toolset struct {
	tools []*Tool
}

// NewToolset builds the three source-document tools over a shared index
// and embedder.
func NewToolset(index *Index, embedder Embedder, logger log.Logger) *Toolset {
	return newToolset(index, embedder, logger)
}

func newToolset(index searcher, embedder Embedder, logger log.Logger) *Toolset {
	if logger == nil {
		logger = log.NewNop()
	}
	base := Tool{index: index, embedder: embedder, logger: logger}

	calendario := base
	calendario.Name = "consultar_calendario_academico"
	calendario.Description = "Consulta datas, prazos e eventos do calendário acadêmico da UEMA 2026: " +
		"matrícula e rematrícula, início e fim de semestres letivos, feriados e recessos, " +
		"provas e avaliações, trancamento, defesas e bancas. " +
		"Parâmetro query: palavras-chave do evento desejado, ex: \"matricula veteranos 2026.1\"."
	calendario.Topic = router.TopicCalendario
	calendario.document = "calendario_academico.pdf"
	calendario.topK = 4
	calendario.fetchK = 25
	calendario.lambda = 0.75
	calendario.maxChars = 1200
	calendario.notFound = "Não encontrei essa informação no calendário acadêmico. " +
		"Tente com outras palavras como: matrícula, feriado, prova, " +
		"trancamento, início das aulas, semestre."

	edital := base
	edital.Name = "consultar_edital_paes_2026"
	edital.Description = "Consulta regras, vagas, cotas e procedimentos do Edital PAES 2026 da UEMA: " +
		"categorias de vagas (AC, PcD, BR-PPI, BR-Q, BR-DC, IR-PPI, CFO-PP), vagas por curso, " +
		"inscrição e documentação, cronograma do processo seletivo, cursos, turnos e campus. " +
		"Parâmetro query: palavras-chave sobre o que deseja consultar, ex: \"cotas rede publica BR-PPI\"."
	edital.Topic = router.TopicEdital
	edital.document = "edital_paes_2026.pdf"
	edital.topK = 3
	edital.maxChars = 1400
	edital.notFound = "Não encontrei essa informação no edital do PAES 2026. " +
		"Tente com palavras como: vagas, cotas, inscrição, documentos, " +
		"cronograma, curso, AC, PcD, BR-PPI."

	contatos := base
	contatos.Name = "consultar_contatos_uema"
	contatos.Description = "Consulta e-mails, telefones e responsáveis de departamentos e setores da UEMA: " +
		"pró-reitorias (PROG, PROEXAE, PRPPG, PRAD), centros acadêmicos, coordenadores e " +
		"diretores de curso, CTIC, reitoria e secretarias. " +
		"Parâmetro query: nome do setor, cargo ou curso, ex: \"email PROG pro-reitoria graduacao\"."
	contatos.Topic = router.TopicContatos
	contatos.document = "guia_contatos_2025.pdf"
	contatos.topK = 4
	contatos.fetchK = 20
	contatos.lambda = 0.65
	contatos.maxChars = 1500
	contatos.notFound = "Não encontrei esse contato no guia institucional. " +
		"Tente com o nome do setor, curso ou cargo. " +
		"Exemplos: PROG, CECEN, reitoria, CTIC, coordenador de física."

	return &Toolset{tools: []*Tool{&calendario, &edital, &contatos}}
}

// ForTopic returns the specs offered to the model for the given topic. A
// submenu topic restricts the offer to its own tool; general questions may
// use any of them.
func (ts *Toolset) ForTopic(topic router.Topic) []provider.ToolSpec {
	specs := make([]provider.ToolSpec, 0, len(ts.tools))
	for _, t := range ts.tools {
		if topic != router.TopicGeneral && t.Topic != topic {
			continue
		}
		specs = append(specs, provider.ToolSpec{Name: t.Name, Description: t.Description})
	}
	return specs
}

// Lookup returns the tool with the given name.
func (ts *Toolset) Lookup(name string) (*Tool, bool) {
	for _, t := range ts.tools {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Execute runs the named tool and returns the model-facing result text.
// An unknown tool name is reported to the model like any other tool
// failure.
func (ts *Toolset) Execute(ctx context.Context, call provider.ToolCall) string {
	t, ok := ts.Lookup(call.Name)
	if !ok {
		return msgToolError
	}
	return t.Invoke(ctx, call.Query)
}
