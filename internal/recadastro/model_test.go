package recadastro

import "testing"

func TestPodeTransicionar(t *testing.T) {
	cases := []struct {
		de, para StatusEnvio
		ok       bool
	}{
		{EnvioPendente, EnvioEmAndamento, true},
		{EnvioPendente, EnvioExpirado, true},
		{EnvioPendente, EnvioEnviado, false},
		{EnvioEmAndamento, EnvioEnviado, true},
		{EnvioEmAndamento, EnvioAprovado, true},
		{EnvioEmAndamento, EnvioExpirado, true},
		{EnvioEnviado, EnvioAprovado, true},
		{EnvioEnviado, EnvioRejeitado, true},
		{EnvioEnviado, EnvioExpirado, true},
		{EnvioRejeitado, EnvioEmAndamento, true},
		{EnvioRejeitado, EnvioAprovado, false},
		{EnvioAprovado, EnvioEmAndamento, false},
		{EnvioAprovado, EnvioExpirado, false},
		{EnvioExpirado, EnvioEmAndamento, false},
	}

	for _, tc := range cases {
		if got := PodeTransicionar(tc.de, tc.para); got != tc.ok {
			t.Errorf("PodeTransicionar(%s, %s) = %v, want %v", tc.de, tc.para, got, tc.ok)
		}
	}
}

func TestValidStatusEnvio(t *testing.T) {
	for _, s := range []StatusEnvio{EnvioPendente, EnvioEmAndamento, EnvioEnviado, EnvioAprovado, EnvioRejeitado, EnvioExpirado} {
		if !ValidStatusEnvio(s) {
			t.Errorf("status %s deveria ser válido", s)
		}
	}
	if ValidStatusEnvio("QUALQUER") {
		t.Error("status desconhecido aceito")
	}
}

func TestValorCampoVazio(t *testing.T) {
	n := 3.5
	cases := []struct {
		nome  string
		valor ValorCampo
		vazio bool
	}{
		{"texto preenchido", ValorCampo{Tipo: "TEXTO", Texto: "x"}, false},
		{"texto vazio", ValorCampo{Tipo: "TEXTO"}, true},
		{"numero presente", ValorCampo{Tipo: "NUMERO", Numero: &n}, false},
		{"numero ausente", ValorCampo{Tipo: "NUMERO"}, true},
		{"checkbox desmarcado", ValorCampo{Tipo: "CHECKBOX"}, true},
		{"checkbox marcado", ValorCampo{Tipo: "CHECKBOX", Marcado: true}, false},
		{"dependente sem filho", ValorCampo{Tipo: "SELECAO_DEPENDENTE", Dependente: &SelecaoDependente{Pai: "a"}}, true},
		{"jornada vazia", ValorCampo{Tipo: "JORNADA"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.nome, func(t *testing.T) {
			if got := tc.valor.Vazio(); got != tc.vazio {
				t.Fatalf("Vazio() = %v, want %v", got, tc.vazio)
			}
		})
	}
}

func TestSetorPertence(t *testing.T) {
	if !SetorPertence("DRE - Administração", "Almoxarifado") {
		t.Error("Almoxarifado deveria pertencer a DRE - Administração")
	}
	if SetorPertence("DRE - Gabinete", "Almoxarifado") {
		t.Error("Almoxarifado não pertence a DRE - Gabinete")
	}
	if SetorPertence("Divisão Fantasma", "Gabinete") {
		t.Error("divisão desconhecida não tem setores")
	}
}
