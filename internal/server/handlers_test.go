package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/floorplan-advisor/internal/advisor"
	"github.com/ironsheep/floorplan-advisor/internal/floorplan"
	"github.com/ironsheep/floorplan-advisor/internal/narration"
	"github.com/ironsheep/floorplan-advisor/internal/ocr"
	"github.com/ironsheep/floorplan-advisor/internal/session"
)

type fakeExtractor struct {
	features *floorplan.Features
	err      error
	calls    int
}

func (f *fakeExtractor) ExtractBytes(ctx context.Context, data []byte) (*floorplan.Features, error) {
	f.calls++
	return f.features, f.err
}

type fakeAdvisor struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []advisor.Request
}

func (f *fakeAdvisor) Advise(ctx context.Context, req advisor.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeAdvisor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeSynth struct {
	err error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader("ID3 " + text)), nil
}

type fakeRecognizer struct {
	text string
}

func (f fakeRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	return f.text, nil
}

type fakeProber struct{}

func (fakeProber) Probe(ctx context.Context) ocr.Info {
	return ocr.Info{Available: true, Version: "5.3.0", Language: "eng"}
}

type testEnv struct {
	server    *Server
	handler   http.Handler
	extractor *fakeExtractor
	advisor   *fakeAdvisor
	synth     *fakeSynth
	store     *session.Store
	audio     *narration.Store
}

func kitchenFeatures() *floorplan.Features {
	return &floorplan.Features{
		WallCount:   2,
		RoomCount:   1,
		Text:        "Kitchen",
		EdgeDataURI: "data:image/png;base64,iVBORw0KGgo=",
	}
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	audio, err := narration.NewStore(t.TempDir(), 8, time.Hour, nil)
	require.NoError(t, err)
	t.Cleanup(func() { audio.Close() })

	env := &testEnv{
		extractor: &fakeExtractor{features: kitchenFeatures()},
		advisor:   &fakeAdvisor{reply: "Open the kitchen to the living room."},
		synth:     &fakeSynth{},
		store:     session.NewStore(),
		audio:     audio,
	}
	env.server = New(Deps{
		Extractor: env.extractor,
		Advisor:   env.advisor,
		Narrator:  narration.NewNarrator(env.synth, audio, time.Second, nil),
		Audio:     audio,
		Store:     env.store,
		OCR:       fakeProber{},
	}, opts)
	env.handler = env.server.Handler()
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// uploadRequest builds a multipart upload with the given field name
func uploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "plan.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func chatRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["detail"]
}

// rectanglePNG renders a dark filled rectangle on white
func rectanglePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 300, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 300; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if x >= 50 && x <= 249 && y >= 50 && y <= 249 {
				c = color.RGBA{0, 0, 0, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHandleRoot(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, WelcomeMessage, decode[map[string]string](t, rec)["message"])
}

func TestHandleUpload_EndToEnd(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(uploadRequest(t, "file", []byte("png bytes")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[UploadResponse](t, rec)
	assert.Equal(t, "Walls: 2, Rooms: 1", resp.DetectedFeatures)
	assert.Equal(t, "Kitchen", resp.ExtractedText)
	assert.Equal(t, "Open the kitchen to the living room.", resp.AIResponse)
	assert.True(t, strings.HasPrefix(resp.EdgeDetectionImage, "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(resp.AudioURL, "/file/speech-"))

	require.Len(t, env.advisor.requests, 1)
	sent := env.advisor.requests[0]
	assert.Equal(t, advisor.Analysis, sent.Kind)
	assert.Contains(t, sent.Prompt, "Walls: 2, Rooms: 1")
	assert.Contains(t, sent.Prompt, "Kitchen")

	assert.Equal(t, []session.ChatEntry{{Question: "AI Recommendation", Reply: resp.AIResponse}}, env.store.History())
	ctx := env.store.CurrentContext()
	assert.Equal(t, "Walls: 2, Rooms: 1", ctx.Features)
	assert.Equal(t, "Kitchen", ctx.Text)

	audio := env.do(httptest.NewRequest(http.MethodGet, resp.AudioURL, nil))
	require.Equal(t, http.StatusOK, audio.Code)
	assert.Equal(t, "audio/mpeg", audio.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", audio.Header().Get("Cache-Control"))
	assert.Equal(t, "ID3 "+resp.AIResponse, audio.Body.String())
}

func TestHandleUpload_ClearsHistory(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.store.CommitAnalysis("Walls: 9, Rooms: 9", "Old", "old advice")
	env.store.AppendChatTurn("q1", "a1")
	env.store.AppendChatTurn("q2", "a2")

	rec := env.do(uploadRequest(t, "file", []byte("png")))
	require.Equal(t, http.StatusOK, rec.Code)

	h := env.store.History()
	require.Len(t, h, 1)
	assert.Equal(t, session.RecommendationQuestion, h[0].Question)
}

func TestHandleUpload_MissingFile(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(uploadRequest(t, "image", []byte("png")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, env.extractor.calls)
	assert.Equal(t, 0, env.advisor.calls())
}

func TestHandleUpload_NotMultipart(t *testing.T) {
	env := newTestEnv(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")

	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
}

func TestHandleUpload_TooLarge(t *testing.T) {
	env := newTestEnv(t, Options{MaxUploadBytes: 1024})

	rec := env.do(uploadRequest(t, "file", bytes.Repeat([]byte{0xAB}, 8192)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, env.extractor.calls)
}

func TestHandleUpload_ExtractionFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.extractor.features = nil
	env.extractor.err = errors.Join(floorplan.ErrExtraction, ocr.ErrEngine)

	rec := env.do(uploadRequest(t, "file", []byte("png")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, detail(t, rec), "Failed to analyze floorplan")
	assert.Equal(t, 0, env.advisor.calls())
	assert.False(t, env.store.CurrentContext().Analyzed)
}

func TestHandleUpload_AdvisorFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.store.CommitAnalysis("Walls: 5, Rooms: 3", "Den", "keep me")
	env.advisor.err = errors.Join(advisor.ErrAdvisor, errors.New("model overloaded"))

	rec := env.do(uploadRequest(t, "file", []byte("png")))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, detail(t, rec), "model overloaded")
	assert.Equal(t, "Walls: 5, Rooms: 3", env.store.CurrentContext().Features, "failed upload leaves state intact")
	assert.Equal(t, "keep me", env.store.History()[0].Reply)
	assert.Equal(t, 0, env.audio.Len())
}

func TestHandleUpload_NarrationFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.synth.err = errors.New("tts quota exceeded")

	rec := env.do(uploadRequest(t, "file", []byte("png")))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, detail(t, rec), "speech synthesis failed")
	assert.False(t, env.store.CurrentContext().Analyzed)
}

func TestHandleUpload_RealExtractor(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.server.deps.Extractor = floorplan.NewExtractor(floorplan.DefaultParams(), fakeRecognizer{text: "Kitchen"}, nil)
	handler := env.server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "file", rectanglePNG(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[UploadResponse](t, rec)
	assert.Contains(t, resp.DetectedFeatures, "Rooms: 1")
	assert.Equal(t, "Kitchen", resp.ExtractedText)
	assert.NotEmpty(t, resp.OverlayImage)
}

func TestHandleUpload_UndecodableImage(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.server.deps.Extractor = floorplan.NewExtractor(floorplan.DefaultParams(), fakeRecognizer{}, nil)
	handler := env.server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "file", []byte("definitely not an image")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, env.advisor.calls())
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	bodies := []string{
		`{"message": ""}`,
		`{"message": "   \n\t"}`,
		`{}`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			env := newTestEnv(t, Options{})

			rec := env.do(chatRequest(body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Message cannot be empty.", detail(t, rec))
			assert.Equal(t, 0, env.advisor.calls(), "advisor must not be invoked")
			assert.Empty(t, env.store.History())
		})
	}
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(chatRequest(`{"message": `))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, env.advisor.calls())
}

func TestHandleChat_WithoutUpload(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.advisor.reply = "Put the sofa facing the window."

	rec := env.do(chatRequest(`{"message": "  Where should the sofa go? "}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ChatResponse](t, rec)
	assert.Equal(t, "Put the sofa facing the window.", resp.Reply)
	assert.True(t, strings.HasPrefix(resp.AudioURL, "/file/speech-"))

	require.Len(t, env.advisor.requests, 1)
	sent := env.advisor.requests[0]
	assert.Equal(t, advisor.Chat, sent.Kind)
	assert.Contains(t, sent.Prompt, "User Question: Where should the sofa go?")
	assert.NotContains(t, sent.Prompt, "Floorplan Summary")

	assert.Equal(t, []session.ChatEntry{{Question: "Where should the sofa go?", Reply: resp.Reply}}, env.store.History())
}

func TestHandleChat_UsesStoredContext(t *testing.T) {
	env := newTestEnv(t, Options{})
	require.Equal(t, http.StatusOK, env.do(uploadRequest(t, "file", []byte("png"))).Code)

	env.advisor.reply = "Yes, add a skylight."
	rec := env.do(chatRequest(`{"message": "Can the kitchen get more light?"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	sent := env.advisor.requests[len(env.advisor.requests)-1]
	assert.Contains(t, sent.Prompt, "**Floorplan Summary**:\n- Walls: 2, Rooms: 1\n- Extracted Text: Kitchen")

	h := env.store.History()
	require.Len(t, h, 2)
	assert.Equal(t, "Can the kitchen get more light?", h[1].Question)
	assert.Equal(t, "Yes, add a skylight.", h[1].Reply)
}

func TestHandleChat_AdvisorFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.advisor.err = errors.Join(advisor.ErrAdvisor, context.DeadlineExceeded)

	rec := env.do(chatRequest(`{"message": "hello"}`))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, env.store.History())
}

func TestHandleChat_UniqueAudioPerReply(t *testing.T) {
	env := newTestEnv(t, Options{})

	first := decode[ChatResponse](t, env.do(chatRequest(`{"message": "one"}`)))
	env.advisor.reply = "A different answer."
	second := decode[ChatResponse](t, env.do(chatRequest(`{"message": "two"}`)))

	require.NotEqual(t, first.AudioURL, second.AudioURL)

	rec := env.do(httptest.NewRequest(http.MethodGet, first.AudioURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ID3 "+first.Reply, rec.Body.String(), "earlier audio handle keeps its bytes")
}

func TestHandleFile_NotFound(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, path := range []string{
		"/file/speech_output.mp3",
		"/file/speech-0b9e3c7a-1d2f-4e5a-8b6c-7d8e9f0a1b2c.mp3",
		"/file/..%2F..%2Fetc%2Fpasswd",
	} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "File not found.", detail(t, rec), path)
	}
}

func TestHandleHistory(t *testing.T) {
	env := newTestEnv(t, Options{})

	before := decode[HistoryResponse](t, env.do(httptest.NewRequest(http.MethodGet, "/api/history", nil)))
	assert.Equal(t, session.NoFloorplan, before.Context.Features)
	assert.False(t, before.Context.Analyzed)
	assert.Empty(t, before.History)

	require.Equal(t, http.StatusOK, env.do(uploadRequest(t, "file", []byte("png"))).Code)

	after := decode[HistoryResponse](t, env.do(httptest.NewRequest(http.MethodGet, "/api/history", nil)))
	assert.Equal(t, "Walls: 2, Rooms: 1", after.Context.Features)
	assert.Len(t, after.History, 1)
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string   `json:"status"`
		OCR    ocr.Info `json:"ocr"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.OCR.Available)
	assert.Equal(t, "5.3.0", body.OCR.Version)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, Options{FrontendOrigin: "http://localhost:3000"})

	preflight := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	preflight.Header.Set("Origin", "http://localhost:3000")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	preflight.Header.Set("Access-Control-Request-Headers", "Content-Type")

	rec := env.do(preflight)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.Header.Set("Origin", "http://evil.example")
	rec = env.do(other)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", detail(t, rec))
}
