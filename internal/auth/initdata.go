package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInitDataMalformed = errors.New("malformed init data")
	ErrInitDataHash      = errors.New("init data hash mismatch")
	ErrInitDataExpired   = errors.New("init data expired")
)

// WebAppUser пользователь из initData мини-приложения Telegram
type WebAppUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// FullName имя и фамилия через пробел
func (u WebAppUser) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// VerifyInitData проверяет подпись initData ключом бота и возраст auth_date.
// maxAge <= 0 отключает проверку возраста.
func VerifyInitData(initData, botToken string, maxAge time.Duration, now time.Time) (*WebAppUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitDataMalformed, err)
	}

	received := values.Get("hash")
	if received == "" {
		return nil, fmt.Errorf("%w: no hash", ErrInitDataMalformed)
	}

	expected := SignInitData(values, botToken)
	if !hmac.Equal([]byte(received), []byte(expected)) {
		return nil, ErrInitDataHash
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: auth_date", ErrInitDataMalformed)
	}
	if maxAge > 0 && now.Sub(time.Unix(authDate, 0)) > maxAge {
		return nil, ErrInitDataExpired
	}

	var user WebAppUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil {
		return nil, fmt.Errorf("%w: user: %v", ErrInitDataMalformed, err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: user id", ErrInitDataMalformed)
	}

	return &user, nil
}

// SignInitData hex(HMAC(HMAC("WebAppData", token), data_check_string)).
// Поле hash в values не участвует в подписи.
func SignInitData(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if key != "hash" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+values.Get(key))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
