package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

const testSecret = "s3cret"
const testClientAddr = "10.1.1.1:40000"

func newTestApp(t *testing.T) (*App, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app, err := newApp(t.TempDir(), testSecret)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	// Keep the verify brute-force guard out of the way of test traffic.
	app.VerifyRPS = 1000
	app.VerifyBurst = 1000
	return app, app.setupRouter()
}

func doRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	req.RemoteAddr = testClientAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not a JSON envelope: %v (%s)", err, w.Body.String())
	}
	return resp
}

func envelopeData(t *testing.T, resp APIResponse) map[string]any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("envelope data is %T, want object", resp.Data)
	}
	return data
}

func loginToken(t *testing.T, router *gin.Engine) string {
	t.Helper()
	form := strings.NewReader("password=" + testSecret)
	req, _ := http.NewRequest("POST", "/admin?action=verify", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := decodeEnvelope(t, doRequest(router, req))
	if !resp.Success {
		t.Fatalf("verify failed: %s", resp.Message)
	}
	return envelopeData(t, resp)["token"].(string)
}

func uploadCSV(t *testing.T, router *gin.Engine, token, filename, content string) APIResponse {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if token != "" {
		_ = mw.WriteField("token", token)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	_ = mw.Close()

	req, _ := http.NewRequest("POST", "/admin?action=upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return decodeEnvelope(t, doRequest(router, req))
}

const sampleCSV = testHeader + "\n" +
	"Alice,a@x.com,http://p,Public,Yes,Yes,5,B1,2,G1\n"

func TestInfoWithoutDataset(t *testing.T) {
	_, router := newTestApp(t)
	req, _ := http.NewRequest("GET", "/admin?action=info", nil)
	resp := decodeEnvelope(t, doRequest(router, req))
	if !resp.Success {
		t.Fatalf("info without dataset must still succeed, got %q", resp.Message)
	}
	data := envelopeData(t, resp)
	if data["userCount"].(float64) != 0 || data["size"].(float64) != 0 {
		t.Errorf("expected zero fallback values, got %v", data)
	}
}

func TestVerifyRejectsWrongPassword(t *testing.T) {
	_, router := newTestApp(t)
	form := strings.NewReader("password=nope")
	req, _ := http.NewRequest("POST", "/admin?action=verify", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := decodeEnvelope(t, doRequest(router, req))
	if resp.Success || resp.Message != MsgInvalidPassword {
		t.Errorf("wrong password: success=%v message=%q", resp.Success, resp.Message)
	}
}

func TestUploadStatsLeaderboardFlow(t *testing.T) {
	_, router := newTestApp(t)
	token := loginToken(t, router)

	resp := uploadCSV(t, router, token, "export.csv", sampleCSV)
	if !resp.Success {
		t.Fatalf("upload failed: %s", resp.Message)
	}
	if envelopeData(t, resp)["filename"].(string) != DatasetFilename {
		t.Errorf("upload reported filename %v", resp.Data)
	}

	// Stats for the single uploaded row.
	req, _ := http.NewRequest("GET", "/api?action=stats", nil)
	statsResp := decodeEnvelope(t, doRequest(router, req))
	if !statsResp.Success {
		t.Fatalf("stats failed: %s", statsResp.Message)
	}
	stats := envelopeData(t, statsResp)
	if stats["total"].(float64) != 1 || stats["completed"].(float64) != 1 {
		t.Errorf("stats = %v", stats)
	}
	if stats["completedPercent"].(float64) != 100 || stats["redeemed"].(float64) != 1 {
		t.Errorf("stats percents = %v", stats)
	}
	if stats["badges"].(map[string]any)["total"].(float64) != 5 {
		t.Errorf("badges = %v", stats["badges"])
	}
	if stats["games"].(map[string]any)["total"].(float64) != 2 {
		t.Errorf("games = %v", stats["games"])
	}

	// Leaderboard serves sanitized content only.
	req, _ = http.NewRequest("GET", "/api?action=leaderboard", nil)
	lbResp := decodeEnvelope(t, doRequest(router, req))
	if !lbResp.Success {
		t.Fatalf("leaderboard failed: %s", lbResp.Message)
	}
	content := envelopeData(t, lbResp)["content"].(string)
	if strings.Contains(content, "a@x.com") {
		t.Error("leaderboard content leaked an email address")
	}
	if !strings.Contains(content, "Alice") {
		t.Error("leaderboard content lost the data row")
	}

	// Info reflects the upload.
	req, _ = http.NewRequest("GET", "/admin?action=info", nil)
	infoResp := decodeEnvelope(t, doRequest(router, req))
	if envelopeData(t, infoResp)["userCount"].(float64) != 1 {
		t.Errorf("info after upload = %v", infoResp.Data)
	}
}

func TestUploadRejections(t *testing.T) {
	_, router := newTestApp(t)
	token := loginToken(t, router)

	cases := []struct {
		name     string
		token    string
		filename string
		content  string
		wantMsg  string
	}{
		{"no token", "", "export.csv", sampleCSV, MsgUnauthorized},
		{"bad token", "deadbeef", "export.csv", sampleCSV, MsgUnauthorized},
		{"wrong extension", token, "export.txt", sampleCSV, MsgNotCSV},
		{"invalid structure", token, "export.csv", "foo,bar\n1,2\n", MsgInvalidCSV},
		{"oversize", token, "export.csv", testHeader + "\n" + strings.Repeat("x", MaxUploadBytes), MsgFileTooLarge},
	}

	for _, c := range cases {
		resp := uploadCSV(t, router, c.token, c.filename, c.content)
		if resp.Success || resp.Message != c.wantMsg {
			t.Errorf("%s: success=%v message=%q, want %q", c.name, resp.Success, resp.Message, c.wantMsg)
		}
	}

	// None of the rejected uploads may have installed a dataset.
	req, _ := http.NewRequest("GET", "/admin?action=info", nil)
	infoResp := decodeEnvelope(t, doRequest(router, req))
	if envelopeData(t, infoResp)["userCount"].(float64) != 0 {
		t.Errorf("rejected uploads modified the dataset: %v", infoResp.Data)
	}
}

func TestDataRequiresMachineCredential(t *testing.T) {
	_, router := newTestApp(t)
	token := loginToken(t, router)
	if resp := uploadCSV(t, router, token, "export.csv", sampleCSV); !resp.Success {
		t.Fatalf("upload failed: %s", resp.Message)
	}

	req, _ := http.NewRequest("GET", "/api?action=data", nil)
	resp := decodeEnvelope(t, doRequest(router, req))
	if resp.Success || resp.Message != "Unauthorized access" {
		t.Errorf("unauthenticated data: success=%v message=%q", resp.Success, resp.Message)
	}

	// A bearer token is the wrong mechanism for this endpoint.
	req, _ = http.NewRequest("GET", "/api?action=data", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if resp := decodeEnvelope(t, doRequest(router, req)); resp.Success {
		t.Error("bearer token accepted on the machine data endpoint")
	}

	sum := sha256.Sum256([]byte(testSecret + time.Now().UTC().Format("2006-01-02")))
	req, _ = http.NewRequest("GET", "/api?action=data", nil)
	req.Header.Set("Authorization", "Bearer "+hex.EncodeToString(sum[:]))
	dataResp := decodeEnvelope(t, doRequest(router, req))
	if !dataResp.Success {
		t.Fatalf("machine credential rejected: %s", dataResp.Message)
	}
	if !strings.Contains(envelopeData(t, dataResp)["content"].(string), "a@x.com") {
		t.Error("raw data endpoint must include emails")
	}
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

func TestLeaderboardRateLimited(t *testing.T) {
	app, router := newTestApp(t)
	app.Limiter = denyAllLimiter{}

	req, _ := http.NewRequest("GET", "/api?action=leaderboard", nil)
	resp := decodeEnvelope(t, doRequest(router, req))
	if resp.Success || resp.Message != MsgRateLimited {
		t.Errorf("throttled leaderboard: success=%v message=%q", resp.Success, resp.Message)
	}
}

func TestDownload(t *testing.T) {
	_, router := newTestApp(t)
	token := loginToken(t, router)
	if resp := uploadCSV(t, router, token, "export.csv", sampleCSV); !resp.Success {
		t.Fatalf("upload failed: %s", resp.Message)
	}

	// Case-insensitive bearer prefix in the Authorization header.
	req, _ := http.NewRequest("GET", "/admin?action=download", nil)
	req.Header.Set("Authorization", "BEARER "+token)
	w := doRequest(router, req)
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d", w.Code)
	}
	if disp := w.Header().Get("Content-Disposition"); !strings.Contains(disp, BackupPrefix) {
		t.Errorf("Content-Disposition = %q, want attachment named with %q", disp, BackupPrefix)
	}
	if w.Body.String() != sampleCSV {
		t.Error("download body differs from the live dataset")
	}

	req, _ = http.NewRequest("GET", "/admin?action=download", nil)
	resp := decodeEnvelope(t, doRequest(router, req))
	if resp.Success || resp.Message != MsgUnauthorized {
		t.Errorf("unauthenticated download: success=%v message=%q", resp.Success, resp.Message)
	}
}

func TestInvalidAction(t *testing.T) {
	_, router := newTestApp(t)
	for _, path := range []string{"/api?action=bogus", "/api", "/admin?action=bogus", "/admin"} {
		req, _ := http.NewRequest("GET", path, nil)
		resp := decodeEnvelope(t, doRequest(router, req))
		if resp.Success || resp.Message != MsgInvalidAction {
			t.Errorf("%s: success=%v message=%q", path, resp.Success, resp.Message)
		}
	}
}

func TestPreflight(t *testing.T) {
	_, router := newTestApp(t)
	corsLayer := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	handler := corsLayer.Handler(router)

	req, _ := http.NewRequest("OPTIONS", "/api", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK && w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want success", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("preflight answered with a body: %q", w.Body.String())
	}
}

func TestExpiredTokenForcesReauth(t *testing.T) {
	app, router := newTestApp(t)
	token := loginToken(t, router)

	app.Tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	resp := uploadCSV(t, router, token, "export.csv", sampleCSV)
	if resp.Success || resp.Message != MsgUnauthorized {
		t.Errorf("expired token upload: success=%v message=%q", resp.Success, resp.Message)
	}
}
