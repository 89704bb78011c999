package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uemahub/sabia/internal/log"
	"github.com/uemahub/sabia/internal/provider"
	"github.com/uemahub/sabia/internal/router"
)

type fakeEmbedder struct {
	vec      []float32
	err      error
	lastText string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type fakeSearcher struct {
	passages []Passage
	err      error

	lastVec      []float32
	lastDocument string
	lastLimit    int
}

func (f *fakeSearcher) Search(_ context.Context, vec []float32, document string, limit int) ([]Passage, error) {
	f.lastVec = vec
	f.lastDocument = document
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

func testToolset(t *testing.T, idx searcher, emb Embedder) *Toolset {
	t.Helper()
	return newToolset(idx, emb, log.NewNop())
}

func passage(content string, embedding ...float32) Passage {
	return Passage{Content: content, Embedding: embedding}
}

func TestTool_NormalizesQueryBeforeEmbedding(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	idx := &fakeSearcher{}
	ts := testToolset(t, idx, emb)

	tool, ok := ts.Lookup("consultar_calendario_academico")
	require.True(t, ok)

	_, err := tool.Retrieve(context.Background(), "  Matrícula de VETERANOS  ")
	require.NoError(t, err)
	assert.Equal(t, "matricula de veteranos", emb.lastText)
}

func TestTool_ScopesSearchToItsDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tool     string
		document string
		limit    int
	}{
		{"consultar_calendario_academico", "calendario_academico.pdf", 25},
		{"consultar_edital_paes_2026", "edital_paes_2026.pdf", 3},
		{"consultar_contatos_uema", "guia_contatos_2025.pdf", 20},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			t.Parallel()
			emb := &fakeEmbedder{vec: []float32{1, 0}}
			idx := &fakeSearcher{}
			ts := testToolset(t, idx, emb)

			tool, ok := ts.Lookup(tt.tool)
			require.True(t, ok)

			_, err := tool.Retrieve(context.Background(), "qualquer coisa")
			require.NoError(t, err)
			assert.Equal(t, tt.document, idx.lastDocument)
			assert.Equal(t, tt.limit, idx.lastLimit, "diversity tools fetch the candidate pool, similarity tools fetch k")
		})
	}
}

func TestTool_RerankReducesPoolToK(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	idx := &fakeSearcher{passages: []Passage{
		passage("a", 0.9, 0.1),
		passage("b", 0.89, 0.12),
		passage("c", 0.6, 0.8),
		passage("d", 0.5, 0.86),
		passage("e", 0.4, 0.9),
		passage("f", 0.3, 0.95),
	}}
	ts := testToolset(t, idx, emb)

	tool, ok := ts.Lookup("consultar_contatos_uema")
	require.True(t, ok)

	got, err := tool.Retrieve(context.Background(), "contatos")
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, "a", got[0].Content, "the nearest passage always survives re-ranking")
}

func TestTool_InvokeJoinsPassagesWithSeparator(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	idx := &fakeSearcher{passages: []Passage{
		passage("EVENTO: Início das aulas | DATA: 10/02/2026"),
		passage("  "),
		passage("EVENTO: Feriado estadual | DATA: 28/07/2026"),
	}}
	ts := testToolset(t, idx, emb)

	tool, ok := ts.Lookup("consultar_edital_paes_2026")
	require.True(t, ok)

	out := tool.Invoke(context.Background(), "datas")
	assert.Equal(t, "EVENTO: Início das aulas | DATA: 10/02/2026\n---\nEVENTO: Feriado estadual | DATA: 28/07/2026", out,
		"blank passages are dropped, the rest joined by a separator line")
}

func TestTool_InvokeTruncatesLongResults(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	idx := &fakeSearcher{passages: []Passage{passage(strings.Repeat("x", 3000))}}
	ts := testToolset(t, idx, emb)

	tool, ok := ts.Lookup("consultar_calendario_academico")
	require.True(t, ok)

	out := tool.Invoke(context.Background(), "q")
	assert.True(t, strings.HasSuffix(out, msgTruncated))
	assert.Len(t, out, 1200+len(msgTruncated))
}

func TestTool_InvokeEmptyResultReturnsNotFound(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	idx := &fakeSearcher{}
	ts := testToolset(t, idx, emb)

	tool, ok := ts.Lookup("consultar_contatos_uema")
	require.True(t, ok)

	out := tool.Invoke(context.Background(), "setor inexistente")
	assert.Contains(t, out, "Não encontrei esse contato")
}

func TestTool_InvokeReportsFailureToTheModel(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	idx := &fakeSearcher{err: errors.New("connection refused")}
	ts := testToolset(t, idx, emb)

	tool, ok := ts.Lookup("consultar_calendario_academico")
	require.True(t, ok)

	out := tool.Invoke(context.Background(), "q")
	assert.Equal(t, msgToolError, out)
}

func TestToolset_ForTopic(t *testing.T) {
	t.Parallel()
	ts := testToolset(t, &fakeSearcher{}, &fakeEmbedder{vec: []float32{1, 0}})

	all := ts.ForTopic(router.TopicGeneral)
	require.Len(t, all, 3)

	edital := ts.ForTopic(router.TopicEdital)
	require.Len(t, edital, 1)
	assert.Equal(t, "consultar_edital_paes_2026", edital[0].Name)
	assert.NotEmpty(t, edital[0].Description)
}

func TestToolset_ExecuteUnknownTool(t *testing.T) {
	t.Parallel()
	ts := testToolset(t, &fakeSearcher{}, &fakeEmbedder{vec: []float32{1, 0}})

	out := ts.Execute(context.Background(), provider.ToolCall{Name: "consultar_fila", Query: "q"})
	assert.Equal(t, msgToolError, out)
}
