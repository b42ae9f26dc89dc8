package router

// DemoInputs are sample requests covering every built-in operation plus
// inputs that match none of them.
var DemoInputs = []string{
	"Gostaria de agendar uma sessão para o Fabiano no dia 10/04/2025",
	"Olá, meu nome é Fabiano, me cumprimente!",
	"Qual a média de 10, 20 e 30?",
	"Quero cancelar a sessão da Roberta no dia 13.",
	"Registre o pagamento do Paulo no valor de R$ 200",
	"Geraldo pagou o que devia",
}
