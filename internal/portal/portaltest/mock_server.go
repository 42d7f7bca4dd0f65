// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package portaltest provides a fake ZKHNSO portal for tests.
package portaltest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

const (
	PreflightSession = "PRE0123456789ABCDEFGHIJ"
	AuthSession      = "AUTH0123456789ABCDEFGHIJ"
	FormToken        = "TKN-5f2d9c1e8b7a"
	Username         = "user@example.org"
	Password         = "s3cret"
	RoomPath         = "/room/lk/"
)

// LoginPage is what login.action renders. Pages requested without a valid
// session also render it.
const LoginPage = `<!DOCTYPE html><html><head><meta charset="utf-8"><title>Вход</title></head><body>
<form id="loginForm" method="post" action="doLogin!enter.action">
<input type="hidden" name="struts.token.name" value="loginToken">
<input type="hidden" name="loginToken" value="` + FormToken + `">
<input type="text" name="userName"><input type="password" name="userPass">
</form></body></html>`

// MetersPage is a counters page with two water meters and one electricity meter.
const MetersPage = `<!DOCTYPE html><html><head><meta charset="utf-8"></head><body>
<form id="countersForm"><table>
<tr><th>Вид услуги</th><th>Номер</th><th>Ед.</th><th>Дата</th><th>Показание</th><th>Расход</th><th>Новое</th><th>Статус</th><th>Поверка</th></tr>
<tr><td>Холодная вода</td><td>ХВ-123456</td><td>куб.м.</td><td>20.09.2025</td><td>345,678</td><td>3</td><td><input type="text" name="v1"></td><td></td><td>01.06.2029</td></tr>
<tr><td>Горячая вода</td><td>654321</td><td>куб.м.</td><td>25.09.2025</td><td>123.9</td><td>1</td><td><input type="text" name="v2"></td><td></td><td>01.06.2029</td></tr>
<tr><td>Электроэнергия</td><td>E 77/01</td><td>кВтч</td><td>18.09.2025</td><td>12 045</td><td>150</td><td><input type="text" name="v3"></td><td></td><td>нет</td></tr>
</table></form></body></html>`

// TariffsPage lists three tariffs, one without a norm.
const TariffsPage = `<!DOCTYPE html><html><head><meta charset="utf-8"></head><body>
<form id="tariffsForm"><table>
<tr><th>Услуга</th><th>Норматив</th><th>Ед.</th><th>Тариф</th><th>Дата</th></tr>
<tr><td>Холодное водоснабжение</td><td>4,75</td><td>куб.м.</td><td>38,46</td><td>01.07.2025</td></tr>
<tr><td>Отопление</td><td>0,0198</td><td>Гкал</td><td>2 845,12</td><td>01.07.2025</td></tr>
<tr><td>Электроснабжение</td><td></td><td>кВтч</td><td>5,79</td><td>01.07.2025</td></tr>
</table></form></body></html>`

// Request is a recorded request.
type Request struct {
	Method string
	Header http.Header
	Form   url.Values
}

// MockServer is a configurable fake portal.
type MockServer struct {
	*httptest.Server
	mu       sync.RWMutex
	pages    map[string]string
	status   map[string]int
	failures map[string]int
	hits     map[string]int
	last     map[string]Request
	username string
	password string
	noCookie bool
}

// NewMockServer starts a fake portal serving the default pages.
func NewMockServer() *MockServer {
	m := &MockServer{
		pages: map[string]string{
			"counters.action": MetersPage,
			"tariffs.action":  TariffsPage,
		},
		status:   map[string]int{},
		failures: map[string]int{},
		hits:     map[string]int{},
		last:     map[string]Request{},
		username: Username,
		password: Password,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(RoomPath+"login.action", m.handlePreflight)
	mux.HandleFunc(RoomPath+"doLogin!enter.action", m.handleLogin)
	mux.HandleFunc(RoomPath+"counters.action", m.handlePage)
	mux.HandleFunc(RoomPath+"tariffs.action", m.handlePage)
	m.Server = httptest.NewServer(mux)
	return m
}

// BaseURL is the portal root to configure clients with.
func (m *MockServer) BaseURL() string {
	return m.URL + RoomPath
}

// SetPage replaces the body served for a page such as "counters.action".
func (m *MockServer) SetPage(page, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = body
}

// SetStatus forces a status code for a page.
func (m *MockServer) SetStatus(page string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[page] = code
}

// FailNext makes the next n requests to page answer 500.
func (m *MockServer) FailNext(page string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[page] = n
}

// SetCredentials changes the accepted username and password.
func (m *MockServer) SetCredentials(user, pass string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.username, m.password = user, pass
}

// OmitPreflightCookie stops login.action from setting JSESSIONID.
func (m *MockServer) OmitPreflightCookie(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noCookie = v
}

// Hits returns how many requests a page received.
func (m *MockServer) Hits(page string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits[page]
}

// LastRequest returns the most recent request to a page.
func (m *MockServer) LastRequest(page string) Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last[page]
}

// intercept records the request and applies forced failures. It reports
// whether the handler should continue.
func (m *MockServer) intercept(w http.ResponseWriter, r *http.Request) (string, bool) {
	page := strings.TrimPrefix(r.URL.Path, RoomPath)
	_ = r.ParseForm()

	m.mu.Lock()
	m.hits[page]++
	m.last[page] = Request{Method: r.Method, Header: r.Header.Clone(), Form: r.PostForm}
	if m.failures[page] > 0 {
		m.failures[page]--
		m.mu.Unlock()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return page, false
	}
	code, forced := m.status[page]
	m.mu.Unlock()

	if forced {
		w.WriteHeader(code)
		return page, false
	}
	return page, true
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, body)
}

func (m *MockServer) handlePreflight(w http.ResponseWriter, r *http.Request) {
	if _, ok := m.intercept(w, r); !ok {
		return
	}
	m.mu.RLock()
	noCookie := m.noCookie
	m.mu.RUnlock()
	if !noCookie {
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: PreflightSession, Path: RoomPath, HttpOnly: true})
	}
	writeHTML(w, LoginPage)
}

func (m *MockServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := m.intercept(w, r); !ok {
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	m.mu.RLock()
	user, pass := m.username, m.password
	m.mu.RUnlock()

	c, err := r.Cookie("JSESSIONID")
	if err != nil || c.Value != PreflightSession ||
		r.PostForm.Get("loginToken") != FormToken ||
		r.PostForm.Get("userName") != user ||
		r.PostForm.Get("userPass") != pass {
		w.WriteHeader(http.StatusForbidden)
		_, _ = fmt.Fprint(w, "<html><body>Неверный логин или пароль</body></html>")
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: AuthSession, Path: RoomPath, HttpOnly: true})
	w.Header().Set("Location", RoomPath+"main.action")
	w.WriteHeader(http.StatusFound)
}

func (m *MockServer) handlePage(w http.ResponseWriter, r *http.Request) {
	page, ok := m.intercept(w, r)
	if !ok {
		return
	}
	m.mu.RLock()
	body := m.pages[page]
	user := m.username
	m.mu.RUnlock()

	sess, err := r.Cookie("JSESSIONID")
	login, lerr := r.Cookie("userLogin")
	if err != nil || sess.Value != AuthSession || lerr != nil || login.Value != user {
		writeHTML(w, LoginPage)
		return
	}
	writeHTML(w, body)
}
