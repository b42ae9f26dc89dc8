package router

import (
	"strings"
	"text/template"
)

// Unknown is the reply the selection prompt asks for when no operation fits.
const Unknown = "UNKNOWN"

var selectTemplate = template.Must(template.New("select").Parse(`Você é um roteador de chamadas de função. Escolha qual função atende à solicitação do usuário.

Funções disponíveis:
{{range .Operations}}- {{.Name}}{{if .Description}}: {{.Description}}{{end}}
{{end}}
Mensagem do usuário:
{{.Input}}

Retorne apenas o nome exato da função sem nenhuma outra informação.
Se não houver nenhuma função que atende à solicitação responda apenas "{{.Unknown}}".

Sua resposta:
`))

var extractTemplate = template.Must(template.New("extract").Parse(`Você é um roteador de chamadas de função. Preencha os parâmetros da função {{.Function}} a partir da solicitação do usuário.

Parâmetros disponíveis:
{{.Schema}}

Mensagem do usuário:
{{.Input}}

Retorne um JSON com duas chaves:
- "function": nome da função
- "parameters": dicionário com os parâmetros para a função (ou vazio se não for necessário)

Omita parâmetros com valores incompletos ou inválidos.
Datas devem estar no formato AAAA-MM-DD.
Não inclua qualquer tipo de comentário na resposta.
Retorne apenas os parâmetros com os valores válidos preenchidos sem nenhuma outra informação.

Exemplo:
{
  "function": "agendar_sessao",
  "parameters": {
     "nome": "João",
     "data": "2025-01-01"
  }
}

Sua resposta:
`))

// SelectPrompt renders the stage-one prompt. Parameters are withheld.
func SelectPrompt(c *Catalog, input string) string {
	var b strings.Builder
	_ = selectTemplate.Execute(&b, struct {
		Operations []Operation
		Input      string
		Unknown    string
	}{c.ops, input, Unknown})
	return b.String()
}

// ExtractPrompt renders the stage-two prompt for op.
func ExtractPrompt(op Operation, input string) string {
	var b strings.Builder
	_ = extractTemplate.Execute(&b, struct {
		Function string
		Schema   string
		Input    string
	}{op.Name, op.SchemaJSON(), input})
	return b.String()
}
