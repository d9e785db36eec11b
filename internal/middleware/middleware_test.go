package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/pkg/auth"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(w.Header().Get(HeaderXRequestID))
	assert.NoError(t, err)
	assert.Equal(t, w.Header().Get(HeaderXRequestID), w.Body.String())

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, incoming)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Header().Get(HeaderXRequestID))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "internal server error", resp.Message)
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/unwritten", func(c *gin.Context) {
		_ = c.Error(apperrors.SlotAlreadyBooked("taken", nil))
	})
	r.GET("/written", func(c *gin.Context) {
		_ = c.Error(errors.New("logged only"))
		c.String(http.StatusAccepted, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/unwritten", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, int(apperrors.ErrCodeSlotAlreadyBooked), decode(t, w).Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(TimeoutConfig{Duration: 10 * time.Millisecond}))
	r.GET("/", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2}).RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SizeLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"too long"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

type clockBody struct {
	Date string `json:"date" binding:"required,date"`
	From string `json:"from" binding:"required,clock"`
}

func TestValidation(t *testing.T) {
	r := gin.New()
	r.Use(Validation(DefaultValidationConfig()))
	r.POST("/", func(c *gin.Context) {
		var body clockBody
		if err := c.ShouldBindJSON(&body); err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"date":"2026-10-19","from":"09:30"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"date":"19/10/2026","from":"25:00"}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Errors []ValidationError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	fields := map[string]string{}
	for _, e := range body.Errors {
		fields[e.Field] = e.Message
	}
	assert.Contains(t, fields, "date")
	assert.Contains(t, fields, "from")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

const testSecret = "test-secret"

func token(t *testing.T, subject uuid.UUID, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.TokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestAuthMiddleware(t *testing.T) {
	m := NewAuthMiddleware(true, auth.NewJWTVerifier(testSecret))
	owner := uuid.New()

	r := gin.New()
	r.Use(m.Authenticate())
	r.GET("/doctors/:id", m.RequireRole(auth.RoleDoctor), func(c *gin.Context) {
		if err := AuthorizeOwner(c, uuid.MustParse(c.Param("id"))); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	call := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/doctors/"+owner.String(), nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, call(""))
	assert.Equal(t, http.StatusUnauthorized, call("Token abc"))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer garbage"))
	assert.Equal(t, http.StatusOK, call("Bearer "+token(t, owner, auth.RoleDoctor)))
	assert.Equal(t, http.StatusForbidden, call("Bearer "+token(t, uuid.New(), auth.RoleDoctor)))
	assert.Equal(t, http.StatusForbidden, call("Bearer "+token(t, owner, auth.RolePatient)))
	assert.Equal(t, http.StatusOK, call("Bearer "+token(t, uuid.New(), auth.RoleAdmin)))
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	m := NewAuthMiddleware(false, nil)

	r := gin.New()
	r.Use(m.Authenticate())
	r.GET("/", m.RequireRole(auth.RoleService), func(c *gin.Context) {
		_, ok := CurrentPrincipal(c)
		assert.False(t, ok)
		assert.NoError(t, AuthorizeOwner(c, uuid.New()))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
}
