package menu

// Menu texts and option expansions. Single source of truth: no other
// package may carry menu strings.

// MainMenu is the greeting menu presented on entry and on "voltar".
const MainMenu = "👋 *Olá! Sou o Assistente Virtual da UEMA.*\n\n" +
	"Escolha uma opção:\n\n" +
	"📅 *1.* Calendário Acadêmico\n" +
	"📋 *2.* Edital PAES 2026\n" +
	"📞 *3.* Contatos e E-mails\n\n" +
	"_Ou digite sua dúvida diretamente._"

// submenuText maps each submenu state to its presentation text.
var submenuText = map[State]string{
	StateCalendario: "📅 *Calendário Acadêmico 2026*\n\n" +
		"*1.* Matrícula e Rematrícula\n" +
		"*2.* Início e Fim de Semestre\n" +
		"*3.* Feriados e Recessos\n" +
		"*4.* Provas e Avaliações\n" +
		"*5.* Trancamento de Matrícula\n\n" +
		"_Ou digite sua dúvida sobre datas._\n" +
		"🔙 *Voltar* para o início.",
	StateEdital: "📋 *Edital PAES 2026*\n\n" +
		"*1.* Categorias de vagas (AC, PcD, cotas)\n" +
		"*2.* Documentos para inscrição\n" +
		"*3.* Cronograma do processo seletivo\n" +
		"*4.* Cursos e vagas ofertados\n\n" +
		"_Ou digite sua dúvida sobre o edital._\n" +
		"🔙 *Voltar* para o início.",
	StateContatos: "📞 *Contatos e E-mails UEMA*\n\n" +
		"*1.* Pró-Reitorias (PROG, PROEXAE, PRPPG...)\n" +
		"*2.* Centros Acadêmicos (CECEN, CESB, CESC...)\n" +
		"*3.* Coordenações de Curso\n" +
		"*4.* TI e CTIC\n\n" +
		"_Ou digite o nome do setor que procura._\n" +
		"🔙 *Voltar* para o início.",
}

// optionQuestion expands a numeric submenu option into a self-contained
// question, so the reasoning stage never receives a bare digit.
var optionQuestion = map[State]map[string]string{
	StateCalendario: {
		"1": "Quais são as datas de matrícula e rematrícula para veteranos e calouros em 2026?",
		"2": "Quando começam e terminam os semestres letivos de 2026?",
		"3": "Quais são os feriados e recessos do calendário acadêmico de 2026?",
		"4": "Quais são as datas de provas, avaliações finais e substitutivas em 2026?",
		"5": "Qual é o prazo para trancamento de matrícula ou de curso em 2026?",
	},
	StateEdital: {
		"1": "Quais são as categorias de vagas do PAES 2026? Explique AC, PcD, BR-PPI, BR-Q, BR-DC e demais cotas.",
		"2": "Quais documentos são necessários para se inscrever no PAES 2026?",
		"3": "Qual é o cronograma do PAES 2026? Datas de inscrição, resultado e matrícula.",
		"4": "Quais cursos e quantas vagas são ofertadas no PAES 2026?",
	},
	StateContatos: {
		"1": "Quais são os e-mails e telefones das Pró-Reitorias da UEMA?",
		"2": "Quais são os contatos dos centros acadêmicos da UEMA (CECEN, CESB, CESC)?",
		"3": "Quais são os e-mails e telefones das coordenações de curso da UEMA?",
		"4": "Qual é o contato da equipe de TI e do CTIC da UEMA?",
	},
}

// SubmenuText returns the presentation text for a submenu state.
// Returns the main menu for StateMain or unknown states.
func SubmenuText(s State) string {
	if text, ok := submenuText[s]; ok {
		return text
	}
	return MainMenu
}
