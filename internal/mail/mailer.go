package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/despesahub/api/internal/config"
)

// Mailer entrega e-mails transacionais via SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// New cria o mailer a partir da configuração SMTP.
func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		from:   cfg.From,
	}
}

func (m *Mailer) send(destino, assunto, corpo string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", destino)
	msg.SetHeader("Subject", assunto)
	msg.SetBody("text/plain", corpo)

	return m.dialer.DialAndSend(msg)
}

// EnviarVerificacao envia o link de confirmação de e-mail.
func (m *Mailer) EnviarVerificacao(destino, nome, link string) error {
	corpo := fmt.Sprintf(
		"Olá, %s!\n\nConfirme seu e-mail para começar a usar o Personal Expense Hub:\n\n%s\n\nSe você não criou esta conta, ignore esta mensagem.",
		nome, link,
	)
	return m.send(destino, "Confirme seu e-mail", corpo)
}

// EnviarConvite envia o link de ativação para um membro convidado.
func (m *Mailer) EnviarConvite(destino, nome, nomeHub, link string) error {
	corpo := fmt.Sprintf(
		"Olá, %s!\n\nVocê foi convidada(o) para o hub \"%s\".\nDefina sua senha para ativar o acesso:\n\n%s\n\nO convite expira em alguns dias.",
		nome, nomeHub, link,
	)
	return m.send(destino, fmt.Sprintf("Convite para o hub %s", nomeHub), corpo)
}

// EnviarResetSenha envia o link de redefinição de senha.
func (m *Mailer) EnviarResetSenha(destino, nome, link string) error {
	corpo := fmt.Sprintf(
		"Olá, %s!\n\nRecebemos um pedido para redefinir sua senha:\n\n%s\n\nSe não foi você, nenhuma ação é necessária.",
		nome, link,
	)
	return m.send(destino, "Redefinição de senha", corpo)
}
