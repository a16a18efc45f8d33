package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa os contadores Prometheus do serviço.
type Metrics struct {
	EnviosProcessados  *prometheus.CounterVec
	CampanhasExpiradas prometheus.Counter
	SweepExecucoes     *prometheus.CounterVec
	EmailsEnviados     prometheus.Counter
}

// New registra todas as métricas no registrador padrão.
func New() *Metrics {
	return &Metrics{
		EnviosProcessados: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "recadastro_envios_processados_total",
			Help: "Total de envios finalizados, por resultado.",
		}, []string{"resultado"}),
		CampanhasExpiradas: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recadastro_campanhas_expiradas_total",
			Help: "Total de campanhas expiradas pela varredura.",
		}),
		SweepExecucoes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "recadastro_sweep_execucoes_total",
			Help: "Execuções da varredura diária, por status.",
		}, []string{"status"}),
		EmailsEnviados: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recadastro_emails_enviados_total",
			Help: "Total de e-mails disparados com sucesso.",
		}),
	}
}

// EnvioProcessado incrementa o contador de envios por resultado.
func (m *Metrics) EnvioProcessado(resultado string) {
	m.EnviosProcessados.WithLabelValues(resultado).Inc()
}
