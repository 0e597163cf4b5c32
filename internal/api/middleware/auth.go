package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth - middleware для защиты операторского API
//
// Проверяет заголовок Authorization: Bearer <token> сравнением за
// постоянное время. Пустой token отключает проверку (локальное
// развертывание за firewall).
func BearerAuth(token string) func(http.Handler) http.Handler {
	expected := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			provided, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="collector"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
