package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/companionlabs/companion/internal/domain"
	"github.com/companionlabs/companion/internal/identity"
	"github.com/companionlabs/companion/internal/store"
)

// fakeRepo is an in-memory Repository for handler tests.
type fakeRepo struct {
	users    map[string]*domain.User
	prefs    map[string]map[string]string
	messages []domain.ChatMessage
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users: make(map[string]*domain.User),
		prefs: make(map[string]map[string]string),
	}
}

func (f *fakeRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (f *fakeRepo) UpsertUser(_ context.Context, user *domain.User) error {
	copied := *user
	f.users[user.UserID] = &copied
	return nil
}

func (f *fakeRepo) CompleteRegistration(_ context.Context, userID string, reg store.Registration) error {
	u, ok := f.users[userID]
	if !ok {
		return store.ErrEmptyPreferenceValue
	}
	u.Email = reg.Email
	u.Username = reg.Username
	u.PasswordHash = reg.PasswordHash
	u.FirstName = reg.FirstName
	u.LastName = reg.LastName
	u.DateOfBirth = reg.DateOfBirth
	u.Gender = reg.Gender
	u.ZipCode = reg.ZipCode
	u.City = reg.City
	u.State = reg.State
	u.Country = reg.Country
	return nil
}

func (f *fakeRepo) EmailExists(_ context.Context, email string) (bool, error) {
	for _, u := range f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	for _, u := range f.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) UpdatePreferences(_ context.Context, userID string, fields map[string]string) error {
	for k, v := range fields {
		if v == "" {
			return store.ErrEmptyPreferenceValue
		}
		if f.prefs[userID] == nil {
			f.prefs[userID] = make(map[string]string)
		}
		f.prefs[userID][k] = v
	}
	if u, ok := f.users[userID]; ok {
		if mode, ok := fields["UImode"]; ok {
			u.UIMode = domain.UIMode(mode)
		}
		if hash, ok := fields["passwordHash"]; ok {
			u.PasswordHash = hash
		}
	}
	return nil
}

func (f *fakeRepo) UpdateLastSeen(_ context.Context, userID string, lastSeen time.Time) error {
	if u, ok := f.users[userID]; ok {
		u.LastSeenAt = lastSeen
	}
	return nil
}

func (f *fakeRepo) SaveMessage(_ context.Context, msg domain.ChatMessage) error {
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeRepo) RoomHistory(_ context.Context, room string, _ int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	for _, m := range f.messages {
		if m.Room == room {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

func visitorUser(id string) *domain.User {
	return &domain.User{
		UserID:         id,
		UIMode:         domain.UIModeSimple,
		CurrentPersona: "jill",
		TimeZone:       "UTC",
	}
}

func newAccountServer(repo *fakeRepo, userID string) *httptest.Server {
	h := NewAccountHandler(NewHandler(repo, "/dashboard"), "US")
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithUserID(req.Context(), userID)))
		})
	})
	h.RegisterRoutes(r)
	return httptest.NewServer(r)
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestRegisterUpgradesVisitor(t *testing.T) {
	repo := newFakeRepo()
	repo.users["v_1"] = visitorUser("v_1")
	srv := newAccountServer(repo, "v_1")
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/register", map[string]string{
		"email":       "ada@example.com",
		"userName":    "ada",
		"password":    "Abc12345!",
		"firstName":   "Ada",
		"lastName":    "Lovelace",
		"dateOfBirth": "1990-12-10",
		"gender":      "female",
		"zipCode":     "94103",
	})
	var reply struct {
		Success    bool   `json:"success"`
		Message    string `json:"message"`
		FirstLogin bool   `json:"first_login"`
	}
	decodeBody(t, resp, &reply)

	if !reply.Success {
		t.Fatalf("Registration rejected: %s", reply.Message)
	}
	if !reply.FirstLogin {
		t.Error("Visitor upgrade should flag first login")
	}

	user := repo.users["v_1"]
	if user.Email != "ada@example.com" || user.Username != "ada" {
		t.Errorf("User not upgraded: %+v", user)
	}
	if user.PasswordHash == "Abc12345!" || user.PasswordHash == "" {
		t.Error("Password must be stored hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("Abc12345!")); err != nil {
		t.Errorf("Stored hash does not verify: %v", err)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	repo := newFakeRepo()
	repo.users["v_1"] = visitorUser("v_1")
	srv := newAccountServer(repo, "v_1")
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/register", map[string]string{
		"email":     "ada@example.com",
		"userName":  "ada",
		"password":  "short",
		"firstName": "Ada",
	})
	var reply struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeBody(t, resp, &reply)
	if reply.Success {
		t.Fatal("Weak password must be rejected")
	}
	if !strings.Contains(reply.Message, "8 characters") {
		t.Errorf("Expected policy message, got %q", reply.Message)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	repo := newFakeRepo()
	repo.users["v_1"] = visitorUser("v_1")
	existing := visitorUser("v_2")
	existing.Email = "taken@example.com"
	existing.Username = "taken"
	repo.users["v_2"] = existing
	srv := newAccountServer(repo, "v_1")
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/register", map[string]string{
		"email":     "taken@example.com",
		"userName":  "ada",
		"password":  "Abc12345!",
		"firstName": "Ada",
	})
	var reply struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeBody(t, resp, &reply)
	if reply.Success {
		t.Fatal("Duplicate email must be rejected")
	}
	if reply.Message != "Username or email already exists." {
		t.Errorf("Unexpected message %q", reply.Message)
	}
}

func TestValidateEmailAndUsername(t *testing.T) {
	repo := newFakeRepo()
	taken := visitorUser("v_2")
	taken.Email = "taken@example.com"
	taken.Username = "taken"
	repo.users["v_2"] = taken
	srv := newAccountServer(repo, "v_1")
	defer srv.Close()

	tests := []struct {
		path  string
		field string
		value string
		want  bool
	}{
		{"/validate_email", "email", "free@example.com", true},
		{"/validate_email", "email", "taken@example.com", false},
		{"/validate_email", "email", "not-an-email", false},
		{"/validate_email", "email", "", false},
		{"/validate_username", "userName", "free_user", true},
		{"/validate_username", "userName", "taken", false},
		{"/validate_username", "userName", "x", false},
		{"/validate_username", "userName", "has spaces", false},
	}
	for _, tt := range tests {
		resp, err := http.Post(srv.URL+tt.path, "application/x-www-form-urlencoded",
			strings.NewReader(url.Values{tt.field: {tt.value}}.Encode()))
		if err != nil {
			t.Fatalf("POST %s: %v", tt.path, err)
		}
		var reply struct {
			IsValid bool `json:"isValid"`
		}
		decodeBody(t, resp, &reply)
		if reply.IsValid != tt.want {
			t.Errorf("%s %q: isValid = %v, want %v", tt.path, tt.value, reply.IsValid, tt.want)
		}
	}
}

func TestUpdatePreferencesValidatesFields(t *testing.T) {
	repo := newFakeRepo()
	repo.users["v_1"] = visitorUser("v_1")
	srv := newAccountServer(repo, "v_1")
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/update_preferences", map[string]string{"UImode": "sparkly"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Unknown UI mode: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/update_preferences", map[string]string{"CurrentPersona": "nobody"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Unknown persona: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/update_preferences", map[string]string{"UImode": "fancy", "CurrentPersona": "olivia"})
	var ok struct {
		Message string `json:"message"`
	}
	decodeBody(t, resp, &ok)
	if ok.Message != "Preferences updated." {
		t.Errorf("Unexpected message %q", ok.Message)
	}
	if repo.prefs["v_1"]["UImode"] != "fancy" {
		t.Error("UI mode not persisted")
	}
}

func TestUpdatePreferencesPasswordChange(t *testing.T) {
	repo := newFakeRepo()
	user := visitorUser("v_1")
	hash, _ := bcrypt.GenerateFromPassword([]byte("Old12345!"), bcrypt.MinCost)
	user.PasswordHash = string(hash)
	repo.users["v_1"] = user
	srv := newAccountServer(repo, "v_1")
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/update_preferences", map[string]string{
		"currentPassword": "wrong",
		"newPassword":     "New12345!",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Wrong current password: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/update_preferences", map[string]string{
		"currentPassword": "Old12345!",
		"newPassword":     "New12345!",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Password change failed: status %d", resp.StatusCode)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(repo.users["v_1"].PasswordHash), []byte("New12345!")); err != nil {
		t.Errorf("New password hash does not verify: %v", err)
	}
	if _, leaked := repo.prefs["v_1"]["newPassword"]; leaked {
		t.Error("Plaintext password key must not reach the store")
	}
}

func TestGetPreferencesAndMe(t *testing.T) {
	repo := newFakeRepo()
	user := visitorUser("v_1")
	user.FirstName = "Ada"
	user.UIMode = domain.UIModeFancy
	user.CurrentPersona = "olivia"
	repo.users["v_1"] = user
	srv := newAccountServer(repo, "v_1")
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/get_preferences")
	if err != nil {
		t.Fatal(err)
	}
	var prefs map[string]string
	decodeBody(t, resp, &prefs)
	if prefs["UImode"] != "fancy" || prefs["CurrentPersona"] != "olivia" {
		t.Errorf("Unexpected preferences: %v", prefs)
	}

	resp, err = http.Get(srv.URL + "/api/me")
	if err != nil {
		t.Fatal(err)
	}
	var profile domain.Profile
	decodeBody(t, resp, &profile)
	if profile.FirstName != "Ada" {
		t.Errorf("Profile first name: %q", profile.FirstName)
	}
	if profile.AvatarURL != "/static/img/personas/olivia.svg" {
		t.Errorf("Fancy mode should use the persona avatar, got %q", profile.AvatarURL)
	}
}

func TestCountryTables(t *testing.T) {
	h := NewCountryHandler("US")
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/static/json/countries.json")
	if err != nil {
		t.Fatal(err)
	}
	var table map[string]string
	decodeBody(t, resp, &table)
	if _, ok := table["US"]; ok {
		t.Error("International table must omit the home country")
	}
	if table["DE"] != "Germany" {
		t.Errorf("Default locale should be English, got %q", table["DE"])
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/static/json/countries_all.json", nil)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	decodeBody(t, resp, &table)
	if _, ok := table["US"]; !ok {
		t.Error("Full table must include the home country")
	}
	if table["DE"] != "Allemagne" {
		t.Errorf("French localization: got %q", table["DE"])
	}
}
