package recadastro

import "sort"

// Tabelas estáticas do vocabulário do formulário. Carregadas uma única
// vez no processo; nunca mutadas após a inicialização do pacote.

// setoresPorDivisao mapeia cada divisão aos setores válidos.
var setoresPorDivisao = map[string][]string{
	"DRE - Gabinete": {
		"Gabinete",
		"Assessoria Técnica",
		"Assessoria Jurídica",
		"Comunicação",
	},
	"DRE - Administração": {
		"Almoxarifado",
		"Patrimônio",
		"Protocolo",
		"Arquivo",
		"Transporte",
	},
	"DRE - Ensino": {
		"Supervisão Escolar",
		"Orientação Pedagógica",
		"Educação Especial",
		"Educação de Jovens e Adultos",
	},
	"DRE - Recursos Humanos": {
		"Folha de Pagamento",
		"Vida Funcional",
		"Perícia Médica",
		"Capacitação",
	},
	"Unidades Escolares": {
		"Direção",
		"Secretaria Escolar",
		"Coordenação Pedagógica",
		"Apoio Operacional",
		"Merenda",
	},
}

// OpcoesSexo enumera as opções do campo sexo.
var OpcoesSexo = []string{"FEMININO", "MASCULINO", "OUTRO", "NAO_INFORMADO"}

// OpcoesEstadoCivil enumera as opções de estado civil.
var OpcoesEstadoCivil = []string{
	"SOLTEIRO(A)",
	"CASADO(A)",
	"DIVORCIADO(A)",
	"VIUVO(A)",
	"UNIAO_ESTAVEL",
}

// OpcoesSindicato enumera filiações sindicais aceitas.
var OpcoesSindicato = []string{"NENHUM", "SINTEM", "SINDSEP", "OUTRO"}

// DiasJornada enumera as chaves válidas da jornada semanal.
var DiasJornada = []string{"seg", "ter", "qua", "qui", "sex", "sab", "dom"}

// Divisoes devolve as divisões em ordem alfabética.
func Divisoes() []string {
	divisoes := make([]string, 0, len(setoresPorDivisao))
	for d := range setoresPorDivisao {
		divisoes = append(divisoes, d)
	}
	sort.Strings(divisoes)
	return divisoes
}

// SetoresDaDivisao devolve os setores válidos de uma divisão.
func SetoresDaDivisao(divisao string) []string {
	return setoresPorDivisao[divisao]
}

// SetorPertence verifica a consistência divisão/setor.
func SetorPertence(divisao, setor string) bool {
	for _, s := range setoresPorDivisao[divisao] {
		if s == setor {
			return true
		}
	}
	return false
}

// OpcaoValida verifica pertencimento de valor em uma enumeração.
func OpcaoValida(opcoes []string, valor string) bool {
	for _, o := range opcoes {
		if o == valor {
			return true
		}
	}
	return false
}

// DiaJornadaValido verifica a chave do dia da semana.
func DiaJornadaValido(dia string) bool {
	for _, d := range DiasJornada {
		if d == dia {
			return true
		}
	}
	return false
}
