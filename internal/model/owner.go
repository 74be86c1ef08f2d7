package model

// Owner описывает аутентифицированного владельца корзины на удалённом сервисе.
// Token передаётся внешним сервисом авторизации и не сохраняется локально.
type Owner struct {
	UserID string
	Token  string
}
