package handlers

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"bombona_tracker/internal/capture"
	"bombona_tracker/internal/models"
	"bombona_tracker/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error
	user          models.Identity
	userErr       error

	lastSignUpEmail    string
	lastSignUpFullName string
	lastSignUpPassword string
	lastGenEmail       string
	lastGenPassword    string
	lastParseToken     string
	lastLogoutToken    string
}

func (m *mockAuth) SignUp(email, fullName, password string) (int, error) {
	m.lastSignUpEmail = email
	m.lastSignUpFullName = fullName
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, email, password string) (string, error) {
	m.lastGenEmail = email
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(ctx context.Context, token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}
func (m *mockAuth) CurrentUser(userID int) (models.Identity, error) {
	return m.user, m.userErr
}
func (m *mockAuth) Logout(ctx context.Context, token string) {
	m.lastLogoutToken = token
}

type mockContainers struct {
	list      []models.Container
	listErr   error
	lastQuery service.ContainerQuery

	get    models.Container
	getErr error

	created    models.Container
	createErr  error
	lastCreate service.CreateContainerInput
	lastActor  models.Identity

	history    []models.Movement
	historyErr error

	transit       []models.Container
	lastTransitBy string

	recent    []models.Movement
	lastLimit int
}

func (m *mockContainers) List(ctx context.Context, q service.ContainerQuery) ([]models.Container, error) {
	m.lastQuery = q
	return m.list, m.listErr
}
func (m *mockContainers) Get(ctx context.Context, id string) (models.Container, error) {
	return m.get, m.getErr
}
func (m *mockContainers) FindByQR(ctx context.Context, code string) (models.Container, error) {
	return m.get, m.getErr
}
func (m *mockContainers) Create(ctx context.Context, in service.CreateContainerInput, actor models.Identity) (models.Container, error) {
	m.lastCreate = in
	m.lastActor = actor
	return m.created, m.createErr
}
func (m *mockContainers) History(ctx context.Context, id string) ([]models.Movement, error) {
	return m.history, m.historyErr
}
func (m *mockContainers) InTransit(ctx context.Context, email string) ([]models.Container, error) {
	m.lastTransitBy = email
	return m.transit, nil
}
func (m *mockContainers) RecentMovements(ctx context.Context, limit int) ([]models.Movement, error) {
	m.lastLimit = limit
	return m.recent, nil
}

type mockScanner struct {
	lookup    models.Container
	lookupErr error

	applied   models.Container
	movement  models.Movement
	applyErr  error
	lastQR    string
	lastInput service.UpdateInput
	lastActor models.Identity
}

func (m *mockScanner) Lookup(ctx context.Context, qr string) (models.Container, error) {
	m.lastQR = qr
	return m.lookup, m.lookupErr
}
func (m *mockScanner) Apply(ctx context.Context, qr string, in service.UpdateInput, actor models.Identity) (models.Container, models.Movement, error) {
	m.lastQR = qr
	m.lastInput = in
	m.lastActor = actor
	return m.applied, m.movement, m.applyErr
}

type mockDashboard struct {
	summary      service.Summary
	err          error
	lastEmail    string
	lastLocation string
}

func (m *mockDashboard) Summary(ctx context.Context, email, locationKey string) (service.Summary, error) {
	m.lastEmail = email
	m.lastLocation = locationKey
	return m.summary, m.err
}
func (m *mockDashboard) Invalidate(ctx context.Context) {}

type mockExport struct {
	body      string
	rows      int
	err       error
	lastQuery service.ContainerQuery
}

func (m *mockExport) write(w io.Writer, q service.ContainerQuery) (int, error) {
	m.lastQuery = q
	if m.err != nil {
		return 0, m.err
	}
	_, _ = io.WriteString(w, m.body)
	return m.rows, nil
}
func (m *mockExport) CSV(ctx context.Context, w io.Writer, q service.ContainerQuery) (int, error) {
	return m.write(w, q)
}
func (m *mockExport) XLSX(ctx context.Context, w io.Writer, q service.ContainerQuery) (int, error) {
	return m.write(w, q)
}
func (m *mockExport) FileName(ext string, now time.Time) string {
	return "bombonas-test." + ext
}

type mockLabels struct {
	png      []byte
	err      error
	lastSize int
}

func (m *mockLabels) LabelPNG(ctx context.Context, id string, size int) ([]byte, error) {
	m.lastSize = size
	return m.png, m.err
}

type mockCapture struct {
	mu sync.Mutex

	view    service.SessionView
	openErr error
	live    bool

	cancelErr error

	submit      service.ScanResult
	submitErr   error
	lastPayload string

	await    service.ScanResult
	awaitErr error

	transitions []capture.Transition

	frames    [][]byte
	grants    int
	denials   []string
	answerErr error
	released  []int
}

func (m *mockCapture) Open(ctx context.Context, userID int, source service.Source) (service.SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return service.SessionView{}, m.openErr
	}
	m.live = true
	return m.view, nil
}
func (m *mockCapture) Current(userID int, source service.Source) (service.SessionView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view, m.live
}
func (m *mockCapture) Cancel(userID int, source service.Source) error {
	return m.cancelErr
}
func (m *mockCapture) Submit(ctx context.Context, userID int, source service.Source, payload string) (service.ScanResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPayload = payload
	return m.submit, m.submitErr
}
func (m *mockCapture) Await(ctx context.Context, userID int, source service.Source) (service.ScanResult, error) {
	return m.await, m.awaitErr
}
func (m *mockCapture) Watch(userID int, source service.Source) (<-chan capture.Transition, error) {
	ch := make(chan capture.Transition, len(m.transitions))
	for _, tr := range m.transitions {
		ch <- tr
	}
	close(ch)
	return ch, nil
}
func (m *mockCapture) Grant(userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants++
	return m.answerErr
}
func (m *mockCapture) Deny(userID int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denials = append(m.denials, reason)
	return m.answerErr
}
func (m *mockCapture) PushFrame(userID int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, data)
	return nil
}
func (m *mockCapture) Release(userID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, userID)
}
func (m *mockCapture) Close() {}

func (m *mockCapture) snapshot() (grants int, denials []string, frames int, released []int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grants, append([]string(nil), m.denials...), len(m.frames), append([]int(nil), m.released...)
}

// ---- Shared Test Helpers ----

var testUser = models.Identity{ID: 7, Email: "ana@example.com", FullName: "Ana Souza", Role: models.RoleUser}

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

// signedIn returns a service whose bearer token "tok" belongs to testUser.
func signedIn(s *service.Service) *service.Service {
	if s.Authorization == nil {
		s.Authorization = &mockAuth{parseID: testUser.ID, user: testUser}
	}
	return s
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
