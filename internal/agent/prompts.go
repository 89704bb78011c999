package agent

import (
	"strings"

	"github.com/uemahub/sabia/internal/memory"
	"github.com/uemahub/sabia/internal/router"
)

// systemPrompt is sent on every completion. Tool names here must match the
// retrieval toolset exactly.
const systemPrompt = `Você é o Assistente Virtual da UEMA (Universidade Estadual do Maranhão), Campus Paulo VI, São Luís - MA.
Responda sempre em português brasileiro, de forma objetiva e precisa.

━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
FERRAMENTAS DISPONÍVEIS
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

📅 consultar_calendario_academico
   Para: datas do calendário letivo 2026 (matrícula, prova, feriado, semestre, trancamento)
   Query: "matricula veteranos 2026.1" | "feriados marco" | "inicio aulas"

📋 consultar_edital_paes_2026
   Para: processo seletivo PAES 2026 (vagas, cotas, inscrição, documentos, cronograma)
   Query: "vagas engenharia civil" | "documentos inscricao" | "cotas BR-PPI"

📞 consultar_contatos_uema
   Para: e-mails, telefones, responsáveis de setores da UEMA
   Query: "PROG pro-reitoria email" | "CTIC TI contato" | "CECEN diretor"

━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
REGRAS
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

1. Use APENAS o retorno das ferramentas. NUNCA invente datas, vagas ou contatos.
2. Se a ferramenta retornar "Não encontrei": tente UMA query diferente.
   Se ainda não encontrar: informe que a informação não está disponível e sugira uema.br.
3. Se retornar "ERRO TÉCNICO": diga "Tive uma instabilidade. Tente em instantes." e PARE.
4. Máximo de 2 tentativas por ferramenta. Depois, responda com o que encontrou.
5. Respostas curtas: até 3 parágrafos ou 6 itens em lista.
6. Use *negrito* para datas, e-mails e setores importantes.`

// User-facing fixed messages. Every failure path of the orchestrator
// terminates in one of these.
const (
	MsgRateLimit = "O sistema está com alta demanda no momento. " +
		"Aguarde alguns segundos e tente novamente. 🙏"

	MsgNotFound = "Não consegui encontrar essa informação no momento. " +
		"Tente reformular sua pergunta ou acesse uema.br diretamente."

	MsgTechError = "Desculpe, tive uma dificuldade técnica. Tente novamente."

	MsgHistoryReset = "Desculpe, tive uma instabilidade. Seu histórico foi reiniciado. " +
		"Pode repetir a pergunta?"
)

// topicInstructions steer the model toward the single tool that matches
// the routed topic.
var topicInstructions = map[router.Topic]string{
	router.TopicCalendario: "O usuário tem uma dúvida sobre datas ou eventos do calendário acadêmico da UEMA 2026. " +
		"Use EXCLUSIVAMENTE a ferramenta 'consultar_calendario_academico'. " +
		"Passe palavras-chave específicas como query (ex: 'matricula veteranos 2026.1'). " +
		"Nunca invente datas — use apenas o que a ferramenta retornar.",
	router.TopicEdital: "O usuário tem uma dúvida sobre o Edital do PAES 2026 (processo seletivo da UEMA). " +
		"Use EXCLUSIVAMENTE a ferramenta 'consultar_edital_paes_2026'. " +
		"Passe termos específicos como query. " +
		"Nunca invente regras ou números de vagas.",
	router.TopicContatos: "O usuário quer encontrar um contato, e-mail ou telefone da UEMA. " +
		"Use EXCLUSIVAMENTE a ferramenta 'consultar_contatos_uema'. " +
		"Passe o nome do setor ou cargo como query. " +
		"Nunca invente e-mails ou telefones.",
	router.TopicGeneral: "Assunto não identificado claramente. Responda com o que souber " +
		"ou oriente o usuário a usar o menu principal para escolher uma área.",
}

// Enrich builds the prompt handed to the model: the routing context, what
// is known about the user, and only then the raw message.
func Enrich(body string, topic router.Topic, userCtx memory.Context) string {
	lines := []string{
		"[CONTEXTO DO ATENDIMENTO]",
		"Área: " + string(topic),
		"Instrução: " + topicInstructions[topic],
	}
	if userCtx.Name != "" {
		lines = append(lines, "Nome do usuário: "+userCtx.Name)
	}
	if userCtx.Course != "" {
		lines = append(lines, "Curso: "+userCtx.Course)
	}
	if userCtx.LastTopic != "" {
		lines = append(lines, "Última área consultada: "+userCtx.LastTopic)
	}
	lines = append(lines, "", "[MENSAGEM DO USUÁRIO]", body)
	return strings.Join(lines, "\n")
}
