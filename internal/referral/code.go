package referral

import (
	"crypto/sha256"
	"regexp"
)

// Формат реферального кода: три заглавные буквы, дефис, шесть символов
// base-36 в верхнем регистре. Пространство кодов ~46 бит, коллизии возможны,
// но редки; уникальность гарантирует индекс в хранилище.
var codePattern = regexp.MustCompile(`^[A-Z]{3}-[A-Z0-9]{6}$`)

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// IssueCode детерминированно выводит код из seed через криптографический хеш.
// Функция чистая и без состояния: при коллизии вызывающий повторяет вызов
// с новым nonce в составе seed, сам издатель не зацикливается.
func IssueCode(seed string) string {
	sum := sha256.Sum256([]byte(seed))

	buf := make([]byte, 0, 10)
	for i := 0; i < 3; i++ {
		buf = append(buf, 'A'+sum[i]%26)
	}
	buf = append(buf, '-')
	for i := 3; i < 9; i++ {
		buf = append(buf, base36Alphabet[int(sum[i])%len(base36Alphabet)])
	}

	return string(buf)
}

// ValidCode проверяет формат реферального кода
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}
