package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/pointloyal/loyalty-backend/internal/models"
	"github.com/pointloyal/loyalty-backend/internal/services"
)

// ---------------------------------------------------------------------------
// In-memory LoyaltyStore and session table so handler contracts can be
// exercised end to end through httptest, without Postgres or Redis.
// ---------------------------------------------------------------------------

type fakeStore struct {
	profiles map[uuid.UUID]*models.Profile
	items    map[uuid.UUID]*models.CatalogItem
	roles    map[uuid.UUID][]string
	users    map[uuid.UUID]string
	hashes   map[uuid.UUID]string
	entries  []*models.Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[uuid.UUID]*models.Profile),
		items:    make(map[uuid.UUID]*models.CatalogItem),
		roles:    make(map[uuid.UUID][]string),
		users:    make(map[uuid.UUID]string),
		hashes:   make(map[uuid.UUID]string),
	}
}

func (f *fakeStore) addProfile(p *models.Profile) {
	cp := *p
	f.profiles[p.ID] = &cp
}

func (f *fakeStore) ProfileByUserID(_ context.Context, userID uuid.UUID) (*models.Profile, error) {
	for _, p := range f.profiles {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, services.ErrProfileNotFound
}

func (f *fakeStore) ProfileByID(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, services.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) RolesByUserID(_ context.Context, userID uuid.UUID) ([]string, error) {
	return append([]string(nil), f.roles[userID]...), nil
}

func (f *fakeStore) ActiveCatalogItem(_ context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	item, ok := f.items[id]
	if !ok || !item.IsActive {
		return nil, services.ErrItemUnavailable
	}
	cp := *item
	return &cp, nil
}

func (f *fakeStore) EmailExists(_ context.Context, email string) (bool, error) {
	for _, e := range f.users {
		if e == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) WithinTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

func (f *fakeStore) AddPoints(_ context.Context, _ *sql.Tx, profileID uuid.UUID, amount int) (int, error) {
	p, ok := f.profiles[profileID]
	if !ok {
		return 0, services.ErrProfileNotFound
	}
	p.PointsBalance += amount
	return p.PointsBalance, nil
}

func (f *fakeStore) DeductPoints(_ context.Context, _ *sql.Tx, profileID uuid.UUID, amount int) (int, error) {
	p, ok := f.profiles[profileID]
	if !ok {
		return 0, services.ErrProfileNotFound
	}
	if p.PointsBalance < amount {
		return 0, services.ErrInsufficientPoints
	}
	p.PointsBalance -= amount
	return p.PointsBalance, nil
}

func (f *fakeStore) InsertTransaction(_ context.Context, _ *sql.Tx, t *models.Transaction) error {
	cp := *t
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, _ *sql.Tx, userID uuid.UUID, email, passwordHash string) error {
	for _, e := range f.users {
		if e == email {
			return services.ErrEmailTaken
		}
	}
	f.users[userID] = email
	f.hashes[userID] = passwordHash
	return nil
}

func (f *fakeStore) CreateProfile(_ context.Context, _ *sql.Tx, p *models.Profile) error {
	cp := *p
	f.profiles[p.ID] = &cp
	return nil
}

func (f *fakeStore) AssignRole(_ context.Context, _ *sql.Tx, userID uuid.UUID, role string) error {
	f.roles[userID] = append(f.roles[userID], role)
	return nil
}

func (f *fakeStore) UpdatePasswordHash(_ context.Context, _ *sql.Tx, userID uuid.UUID, passwordHash string) error {
	f.hashes[userID] = passwordHash
	return nil
}

func (f *fakeStore) ClearPasswordFlag(_ context.Context, _ *sql.Tx, userID uuid.UUID) error {
	for _, p := range f.profiles {
		if p.UserID == userID {
			p.MustChangePassword = false
			return nil
		}
	}
	return services.ErrProfileNotFound
}

// installFakes swaps the package-level service and session lookup for the
// duration of a test.
func installFakes(t *testing.T, store services.LoyaltyStore, sessions map[string]uuid.UUID) {
	t.Helper()
	prevService := loyaltyService
	prevValidate := validateSession

	loyaltyService = services.NewLoyaltyService(store)
	validateSession = func(token string) (uuid.UUID, bool, error) {
		id, ok := sessions[token]
		return id, ok, nil
	}

	t.Cleanup(func() {
		loyaltyService = prevService
		validateSession = prevValidate
	})
}

func doJSON(handler http.HandlerFunc, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

// ---------------------------------------------------------------------------
// Password-change gate
// ---------------------------------------------------------------------------

// protectedProbe stands in for any customer endpoint behind the gate.
var protectedProbe = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := requireCustomer(w, r); !ok {
		return
	}
	w.WriteHeader(http.StatusOK)
})

func TestPasswordChangeGate(t *testing.T) {
	store := newFakeStore()
	p := &models.Profile{
		ID:                 uuid.New(),
		UserID:             uuid.New(),
		FullName:           "Jane Doe",
		PointsBalance:      100,
		MustChangePassword: true,
	}
	store.addProfile(p)
	installFakes(t, store, map[string]uuid.UUID{"tok-jane": p.UserID})

	// No credential: 401 before the gate is even consulted.
	rec := doJSON(protectedProbe.ServeHTTP, http.MethodGet, "/", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rec.Code)
	}

	// Flag set: 403 with the machine-readable code.
	rec = doJSON(protectedProbe.ServeHTTP, http.MethodGet, "/", "tok-jane", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("gated: expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["code"] != "password_change_required" {
		t.Errorf("gated: expected code password_change_required, got %v", body["code"])
	}

	// After a successful password change the gate opens.
	if err := loyaltyService.SetPassword(context.Background(), p.UserID, "new-hash"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	rec = doJSON(protectedProbe.ServeHTTP, http.MethodGet, "/", "tok-jane", "")
	if rec.Code != http.StatusOK {
		t.Errorf("after change: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetTransactions_GatedProfile(t *testing.T) {
	store := newFakeStore()
	p := &models.Profile{
		ID:                 uuid.New(),
		UserID:             uuid.New(),
		FullName:           "Jane Doe",
		MustChangePassword: true,
	}
	store.addProfile(p)
	installFakes(t, store, map[string]uuid.UUID{"tok-jane": p.UserID})

	rec := doJSON(GetTransactions, http.MethodGet, "/api/transactions", "tok-jane", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["code"] != "password_change_required" {
		t.Errorf("expected code password_change_required, got %v", body["code"])
	}
}

// ---------------------------------------------------------------------------
// Create-customer contract: 401 / 403 / 400 / 200
// ---------------------------------------------------------------------------

func TestCreateCustomer_Contract(t *testing.T) {
	store := newFakeStore()
	cashierID := uuid.New()
	customerID := uuid.New()
	store.roles[cashierID] = []string{models.RoleCashier}
	store.roles[customerID] = []string{models.RoleUser}
	sessions := map[string]uuid.UUID{
		"tok-cashier":  cashierID,
		"tok-customer": customerID,
	}
	installFakes(t, store, sessions)

	// 401 without a credential.
	rec := doJSON(CreateCustomer, http.MethodPost, "/api/cashier/customers", "", `{}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Unauthorized" {
		t.Errorf("no token: expected error Unauthorized, got %v", body["error"])
	}

	// 403 without the cashier/admin role.
	rec = doJSON(CreateCustomer, http.MethodPost, "/api/cashier/customers", "tok-customer", `{}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("plain user: expected 403, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Forbidden: Cashier privileges required" {
		t.Errorf("plain user: unexpected error %v", body["error"])
	}

	// 400 on missing fields.
	rec = doJSON(CreateCustomer, http.MethodPost, "/api/cashier/customers", "tok-cashier", `{"email":"jane@example.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing fullName: expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Missing required fields: email, fullName" {
		t.Errorf("missing fullName: unexpected error %v", body["error"])
	}

	// 200 on success, with the created identity echoed back.
	rec = doJSON(CreateCustomer, http.MethodPost, "/api/cashier/customers", "tok-cashier",
		`{"email":"Jane@Example.com","fullName":"Jane Doe","phone":"555-0101"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Errorf("create: expected success true, got %v", body["success"])
	}
	user, ok := body["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("create: missing user object in %s", rec.Body.String())
	}
	if user["email"] != "jane@example.com" {
		t.Errorf("create: expected normalized email, got %v", user["email"])
	}
	if user["fullName"] != "Jane Doe" {
		t.Errorf("create: unexpected fullName %v", user["fullName"])
	}

	// The new profile is gated until the first password change.
	newUserID, err := uuid.Parse(user["id"].(string))
	if err != nil {
		t.Fatalf("create: user id is not a uuid: %v", user["id"])
	}
	p, err := store.ProfileByUserID(context.Background(), newUserID)
	if err != nil {
		t.Fatalf("ProfileByUserID: %v", err)
	}
	if !p.MustChangePassword {
		t.Error("new customer should be flagged for a forced password change")
	}

	// 400 on duplicate email.
	rec = doJSON(CreateCustomer, http.MethodPost, "/api/cashier/customers", "tok-cashier",
		`{"email":"jane@example.com","fullName":"Jane Again"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate: expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "User with this email already exists" {
		t.Errorf("duplicate: unexpected error %v", body["error"])
	}
}

// ---------------------------------------------------------------------------
// Cashier point adjustment
// ---------------------------------------------------------------------------

func TestAdjustPoints_SuccessMessageNamesCustomer(t *testing.T) {
	store := newFakeStore()
	cashierID := uuid.New()
	store.roles[cashierID] = []string{models.RoleCashier}
	p := &models.Profile{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		FullName:      "Jane Doe",
		PointsBalance: 100,
	}
	store.addProfile(p)
	installFakes(t, store, map[string]uuid.UUID{"tok-cashier": cashierID})

	rec := doJSON(AdjustPoints, http.MethodPost, "/api/cashier/points", "tok-cashier",
		fmt.Sprintf(`{"profile_id":%q,"type":"earn","points":50}`, p.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["message"] != "50 points added to Jane Doe's account" {
		t.Errorf("unexpected message: %v", body["message"])
	}
	if body["points_balance"] != float64(150) {
		t.Errorf("points_balance: got %v, want 150", body["points_balance"])
	}
}

func TestAdjustPoints_DebitOverBalance(t *testing.T) {
	store := newFakeStore()
	cashierID := uuid.New()
	store.roles[cashierID] = []string{models.RoleCashier}
	p := &models.Profile{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		FullName:      "Jane Doe",
		PointsBalance: 100,
	}
	store.addProfile(p)
	installFakes(t, store, map[string]uuid.UUID{"tok-cashier": cashierID})

	rec := doJSON(AdjustPoints, http.MethodPost, "/api/cashier/points", "tok-cashier",
		fmt.Sprintf(`{"profile_id":%q,"type":"redeem","points":150}`, p.ID))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["message"] != "Customer doesn't have enough points" {
		t.Errorf("unexpected message: %v", body["message"])
	}
	if got := store.profiles[p.ID].PointsBalance; got != 100 {
		t.Errorf("balance changed on rejected debit: got %d, want 100", got)
	}
}
