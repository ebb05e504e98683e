package domain

import (
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The pt-BR catalog below is the only rendered language.
const (
	msgDownloadBlocked     = "downloads blocked"
	msgDownloadsUnlimited  = "unlimited downloads"
	msgDailyExceeded       = "daily download limit of %d reached"
	msgWeeklyExceeded      = "weekly download limit of %d reached"
	msgDailyRemaining      = "%d daily downloads remaining"
	msgWeeklyRemaining     = "%d weekly downloads remaining"
	msgCommentsRestricted  = "comments require a paid plan"
	msgCommentLimit        = "daily comment limit of %d reached"
	msgFavoriteLimit       = "favorite limit of %d reached on plan %s"
	msgDeviceLimit         = "device limit of %d reached on plan %s"
	msgHistoryRestricted   = "download history requires a paid plan"
	msgSubscriptionExpired = "subscription expired"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

func init() {
	tag := language.BrazilianPortuguese

	mustSet(tag, msgDownloadBlocked, catalog.String(
		"Seus downloads estão bloqueados. Entre em contato com o suporte."))
	mustSet(tag, msgDownloadsUnlimited, catalog.String("Downloads ilimitados."))
	mustSet(tag, msgDailyExceeded, plural.Selectf(1, "%d",
		"=1", "Você atingiu o limite de %d download diário. Próximo reset à meia-noite.",
		"other", "Você atingiu o limite de %d downloads diários. Próximo reset à meia-noite."))
	mustSet(tag, msgWeeklyExceeded, plural.Selectf(1, "%d",
		"=1", "Você atingiu o limite de %d download semanal. Próximo reset no domingo às 00:00.",
		"other", "Você atingiu o limite de %d downloads semanais. Próximo reset no domingo às 00:00."))
	mustSet(tag, msgDailyRemaining, plural.Selectf(1, "%d",
		"=0", "Nenhum download restante hoje.",
		"=1", "Resta %d download hoje.",
		"other", "Restam %d downloads hoje."))
	mustSet(tag, msgWeeklyRemaining, plural.Selectf(1, "%d",
		"=0", "Nenhum download restante nesta semana.",
		"=1", "Resta %d download nesta semana.",
		"other", "Restam %d downloads nesta semana."))
	mustSet(tag, msgCommentsRestricted, catalog.String(
		"Comentários estão disponíveis apenas para assinantes Premium e VIP."))
	mustSet(tag, msgCommentLimit, catalog.String(
		"Você atingiu o limite de %d comentários por dia."))
	mustSet(tag, msgFavoriteLimit, catalog.String(
		"Você atingiu o limite de %d favoritos do plano %s."))
	mustSet(tag, msgDeviceLimit, plural.Selectf(1, "%d",
		"=1", "Limite de %d dispositivo conectado atingido para o plano %s.",
		"other", "Limite de %d dispositivos conectados atingido para o plano %s."))
	mustSet(tag, msgHistoryRestricted, catalog.String(
		"O histórico de downloads está disponível apenas para assinantes Premium e VIP."))
	mustSet(tag, msgSubscriptionExpired, catalog.String(
		"Sua assinatura expirou. Seu plano foi alterado para Grátis."))
}

func mustSet(tag language.Tag, key string, msg catalog.Message) {
	if err := message.Set(tag, key, msg); err != nil {
		panic(err)
	}
}

func localize(key string, args ...any) string {
	return printer.Sprintf(key, args...)
}

func remainingMessage(w QuotaWindow, remaining int) string {
	if w == WindowWeekly {
		return localize(msgWeeklyRemaining, remaining)
	}
	return localize(msgDailyRemaining, remaining)
}

func exceededMessage(w QuotaWindow, limit int) string {
	if w == WindowWeekly {
		return localize(msgWeeklyExceeded, limit)
	}
	return localize(msgDailyExceeded, limit)
}

// HistoryRestrictedMessage is shown to plans without history access.
func HistoryRestrictedMessage() string {
	return localize(msgHistoryRestricted)
}

// SubscriptionExpiredMessage is shown once after an automatic downgrade.
func SubscriptionExpiredMessage() string {
	return localize(msgSubscriptionExpired)
}
