// Package validation содержит функции валидации полей формы оформления заказа.
package validation

import (
	"strings"
	"unicode"
)

// IsLuhnValid проверяет контрольную сумму номера по алгоритму Луна.
// Пробелы и дефисы между группами цифр допускаются.
func IsLuhnValid(number string) bool {
	number = stripSeparators(number)
	if number == "" {
		return false
	}

	sum := 0
	double := false

	for i := len(number) - 1; i >= 0; i-- {
		ch := rune(number[i])
		if !unicode.IsDigit(ch) {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}

// minVoucherDigits задаёт минимальную длину кода подарочного сертификата.
const minVoucherDigits = 8

// IsValidVoucher проверяет код подарочного сертификата: не меньше
// minVoucherDigits цифр и верная контрольная сумма Луна.
func IsValidVoucher(code string) bool {
	return len(stripSeparators(code)) >= minVoucherDigits && IsLuhnValid(code)
}

// IsValidPhone проверяет телефон: необязательный "+" и от 7 до 15 цифр.
func IsValidPhone(phone string) bool {
	phone = stripSeparators(phone)
	phone = strings.NewReplacer("(", "", ")", "").Replace(phone)
	phone = strings.TrimPrefix(phone, "+")

	if len(phone) < 7 || len(phone) > 15 {
		return false
	}
	for _, ch := range phone {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// IsValidPostalCode проверяет почтовый индекс: от 3 до 10 букв, цифр, пробелов или дефисов.
func IsValidPostalCode(code string) bool {
	code = strings.TrimSpace(code)
	if len(code) < 3 || len(code) > 10 {
		return false
	}
	hasDigit := false
	for _, ch := range code {
		switch {
		case ch >= '0' && ch <= '9':
			hasDigit = true
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch == ' ', ch == '-':
		default:
			return false
		}
	}
	return hasDigit
}

func stripSeparators(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
}
