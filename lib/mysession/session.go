package mysession

import (
	"time"
)

type Value struct {
	Key string
	Val string
}

// Session is the server side state behind the session cookie.
type Session struct {
	UID          string
	UserUID      string
	AccessToken  string  `datastore:",noindex"`
	Values       []Value `datastore:",noindex"`
	CreatedAt    time.Time
	LastModified *time.Time
}

func (s Session) IsAuthenticated() bool {
	return s.AccessToken != ""
}

func (s Session) Get(key string) (string, bool) {
	for _, v := range s.Values {
		if v.Key == key {
			return v.Val, true
		}
	}
	return "", false
}

func (s *Session) Set(key string, val string) {
	for idx, v := range s.Values {
		if v.Key == key {
			s.Values[idx].Val = val
			return
		}
	}
	s.Values = append(s.Values, Value{Key: key, Val: val})
}

func (s *Session) Delete(keys ...string) {
	remaining := []Value{}
	for _, v := range s.Values {
		if !contains(keys, v.Key) {
			remaining = append(remaining, v)
		}
	}
	s.Values = remaining
}

func (s *Session) Login(userUID string, accessToken string) {
	s.UserUID = userUID
	s.AccessToken = accessToken
}

func (s *Session) Logout() {
	s.UserUID = ""
	s.AccessToken = ""
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
