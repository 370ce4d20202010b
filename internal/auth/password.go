package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// User - учётная запись из конфигурации
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
	Operator     bool   `yaml:"operator"`      // может управлять записью и воспроизведением
}

// HashPassword возвращает bcrypt хеш пароля
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword сравнивает bcrypt хеш с паролем
func CheckPassword(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticate ищет пользователя и проверяет пароль
func Authenticate(users []User, username, password string) (User, bool) {
	for _, u := range users {
		if u.Username == username {
			return u, CheckPassword(u.PasswordHash, password)
		}
	}
	return User{}, false
}
