package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/echocheck/echocheck/server/auth"
	"github.com/echocheck/echocheck/server/models"
	"github.com/echocheck/echocheck/server/sos"
	"github.com/echocheck/echocheck/server/twilio"
	"github.com/echocheck/echocheck/shared"
	"github.com/go-playground/validator"
	"github.com/golang-jwt/jwt"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func newTestRequestHandler(t *testing.T) *requestHandler {
	models.InitializeTestDb()

	validate := validator.New()
	assert.Nil(t, RegisterValidators(validate))

	twilioClient := twilio.NewClient(shared.TwilioConfig{
		AccountSid:     "ACtest",
		AuthToken:      "token",
		PhoneNumber:    "+14165550000",
		WhatsappNumber: "+14165550001",
	}, true)

	return &requestHandler{
		jwtSecret:   "test-secret",
		validate:    validate,
		broadcaster: sos.NewBroadcaster(twilioClient),
	}
}

func createSignedInUser(t *testing.T) *models.User {
	user := &models.User{Name: "Tony Stark", Email: "stark@avengers.com"}
	assert.Nil(t, models.CreateUser(user, "very-secure"))
	return user
}

// authenticatedRequest builds a request carrying the decoded claims a
// protected route would see after the context middleware ran.
func authenticatedRequest(method, target string, body interface{}, userID uint) *http.Request {
	encoded, _ := json.Marshal(body)
	r := httptest.NewRequest(method, target, bytes.NewReader(encoded))

	ctx := context.WithValue(r.Context(), RequestContextKey("decodedJWT"), DecodedJWT{
		Claims: &auth.EchocheckTokenClaims{
			StandardClaims: jwt.StandardClaims{Subject: fmt.Sprint(userID)},
		},
	})

	return r.WithContext(ctx)
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) ResponsePayload {
	payload := ResponsePayload{}
	assert.Nil(t, json.NewDecoder(rr.Body).Decode(&payload))
	return payload
}

func dataMap(t *testing.T, payload ResponsePayload) map[string]interface{} {
	data, ok := payload.Data.(map[string]interface{})
	assert.True(t, ok, "Expected object response data, got %T", payload.Data)
	return data
}

func TestRegister(t *testing.T) {
	handler := newTestRequestHandler(t)

	body, _ := json.Marshal(registerParams{
		Name: "Tony Stark", Email: "stark@avengers.com", Password: "very-secure",
	})

	rr := httptest.NewRecorder()
	handler.register(rr, httptest.NewRequest("POST", "/api/register", bytes.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rr.Code)
	payload := decodeResponse(t, rr)
	assert.True(t, payload.Success)

	session := dataMap(t, payload)
	assert.NotEmpty(t, session["token"])

	claims, err := auth.DecodeJWT(session["token"].(string), handler.jwtSecret)
	assert.Nil(t, err)
	assert.Equal(t, "Tony Stark", claims.Name)

	// Same email again is a conflict
	rr = httptest.NewRecorder()
	handler.register(rr, httptest.NewRequest("POST", "/api/register", bytes.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, decodeResponse(t, rr).Errors, "user already exists")
}

func TestRegisterValidation(t *testing.T) {
	handler := newTestRequestHandler(t)

	testCases := []registerParams{
		{Name: "Tony2", Email: "stark@avengers.com", Password: "very-secure"},
		{Name: "Tony Stark", Email: "not-an-email", Password: "very-secure"},
		{Name: "Tony Stark", Email: "stark@avengers.com", Password: ""},
	}

	for _, params := range testCases {
		body, _ := json.Marshal(params)
		rr := httptest.NewRecorder()
		handler.register(rr, httptest.NewRequest("POST", "/api/register", bytes.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rr.Code, "Should reject %+v", params)
	}
}

func TestLogIn(t *testing.T) {
	handler := newTestRequestHandler(t)
	createSignedInUser(t)

	logIn := func(email, password string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"email": email, "password": password})
		rr := httptest.NewRecorder()
		handler.logIn(rr, httptest.NewRequest("POST", "/api/login", bytes.NewReader(body)))
		return rr
	}

	rr := logIn("stark@avengers.com", "very-secure")
	assert.Equal(t, http.StatusOK, rr.Code)
	session := dataMap(t, decodeResponse(t, rr))
	assert.NotEmpty(t, session["token"])

	// Wrong password & unknown email are indistinguishable
	rr = logIn("stark@avengers.com", "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, decodeResponse(t, rr).Errors, "invalid credentials")

	rr = logIn("nobody@avengers.com", "very-secure")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, decodeResponse(t, rr).Errors, "invalid credentials")

	rr = logIn("", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestContactEndpoints(t *testing.T) {
	handler := newTestRequestHandler(t)
	user := createSignedInUser(t)

	// Add
	rr := httptest.NewRecorder()
	handler.addContact(rr, authenticatedRequest("POST", "/api/contacts",
		contactParams{Name: "Pepper Potts", Phone: "4165551234", Email: "pepper@avengers.com"}, user.ID))
	assert.Equal(t, http.StatusCreated, rr.Code)

	// Phone must be exactly 10 digits
	rr = httptest.NewRecorder()
	handler.addContact(rr, authenticatedRequest("POST", "/api/contacts",
		contactParams{Name: "Happy Hogan", Phone: "+1416555"}, user.ID))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// List
	rr = httptest.NewRecorder()
	handler.listContacts(rr, authenticatedRequest("GET", "/api/contacts", nil, user.ID))
	assert.Equal(t, http.StatusOK, rr.Code)

	data := dataMap(t, decodeResponse(t, rr))
	contacts := data["contacts"].([]interface{})
	assert.Len(t, contacts, 1)

	contactID := uint(contacts[0].(map[string]interface{})["id"].(float64))

	// Deleting an id that isn't there is a 404
	rr = httptest.NewRecorder()
	r := authenticatedRequest("DELETE", "/api/contacts/99999", nil, user.ID)
	handler.deleteContact(rr, mux.SetURLVars(r, map[string]string{"id": "99999"}))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Deleting the real one works
	rr = httptest.NewRecorder()
	r = authenticatedRequest("DELETE", fmt.Sprintf("/api/contacts/%v", contactID), nil, user.ID)
	handler.deleteContact(rr, mux.SetURLVars(r, map[string]string{"id": fmt.Sprint(contactID)}))
	assert.Equal(t, http.StatusOK, rr.Code)

	contacts2, err := models.ContactsFor(user.ID)
	assert.Nil(t, err)
	assert.Empty(t, contacts2)
}

func TestCreateTrip(t *testing.T) {
	handler := newTestRequestHandler(t)
	user := createSignedInUser(t)

	// Interval defaults when omitted
	rr := httptest.NewRecorder()
	handler.createTrip(rr, authenticatedRequest("POST", "/api/trip",
		tripParams{Destination: "Monaco"}, user.ID))
	assert.Equal(t, http.StatusCreated, rr.Code)

	first, err := models.FindActiveTrip(user.ID)
	assert.Nil(t, err)
	assert.Equal(t, defaultTripIntervalMinutes, first.IntervalMinutes)

	// A new trip force-closes the previous active one
	rr = httptest.NewRecorder()
	handler.createTrip(rr, authenticatedRequest("POST", "/api/trip",
		tripParams{Destination: "Malibu", IntervalMinutes: 30}, user.ID))
	assert.Equal(t, http.StatusCreated, rr.Code)

	active, err := models.FindActiveTrip(user.ID)
	assert.Nil(t, err)
	assert.Equal(t, "Malibu", active.Destination)
	assert.Equal(t, 30, active.IntervalMinutes)

	// Destination is required
	rr = httptest.NewRecorder()
	handler.createTrip(rr, authenticatedRequest("POST", "/api/trip", tripParams{}, user.ID))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetActiveTrip(t *testing.T) {
	handler := newTestRequestHandler(t)
	user := createSignedInUser(t)

	// No active trip isn't an error
	rr := httptest.NewRecorder()
	handler.getActiveTrip(rr, authenticatedRequest("GET", "/api/trip/active", nil, user.ID))
	assert.Equal(t, http.StatusOK, rr.Code)

	data := dataMap(t, decodeResponse(t, rr))
	assert.Nil(t, data["trip"])

	trip, err := models.CreateTrip(user.ID, "Monaco", 10)
	assert.Nil(t, err)

	rr = httptest.NewRecorder()
	handler.getActiveTrip(rr, authenticatedRequest("GET", "/api/trip/active", nil, user.ID))
	data = dataMap(t, decodeResponse(t, rr))
	assert.Equal(t, "Monaco", data["trip"].(map[string]interface{})["destination"])
	assert.Equal(t, float64(trip.ID), data["trip"].(map[string]interface{})["id"])
}

func TestCheckIn(t *testing.T) {
	handler := newTestRequestHandler(t)
	user := createSignedInUser(t)

	trip, err := models.CreateTrip(user.ID, "Monaco", 10)
	assert.Nil(t, err)

	// trip_id is required
	rr := httptest.NewRecorder()
	handler.checkIn(rr, authenticatedRequest("POST", "/api/checkin",
		map[string]interface{}{"lat": 43.73, "lng": 7.42}, user.ID))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Coordinates must be numbers
	rr = httptest.NewRecorder()
	handler.checkIn(rr, authenticatedRequest("POST", "/api/checkin",
		map[string]interface{}{"trip_id": trip.ID, "lat": "north", "lng": 7.42}, user.ID))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Someone else's (or a closed) trip is a 404
	rr = httptest.NewRecorder()
	handler.checkIn(rr, authenticatedRequest("POST", "/api/checkin",
		map[string]interface{}{"trip_id": 99999, "lat": 43.73, "lng": 7.42}, user.ID))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// A valid check-in advances the deadline by the trip's stored interval
	before := time.Now().UTC()
	rr = httptest.NewRecorder()
	handler.checkIn(rr, authenticatedRequest("POST", "/api/checkin",
		map[string]interface{}{"trip_id": trip.ID, "lat": "43.73", "lng": 7.42}, user.ID))
	assert.Equal(t, http.StatusOK, rr.Code)

	data := dataMap(t, decodeResponse(t, rr))
	nextCheckDue, err := time.Parse(time.RFC3339, data["next_check_due"].(string))
	assert.Nil(t, err)
	assert.True(t, nextCheckDue.After(before.Add(10*time.Minute).Add(-time.Second)))
	assert.True(t, nextCheckDue.Before(before.Add(11*time.Minute)))

	checkIns, err := models.CheckInsForTrip(trip.ID)
	assert.Nil(t, err)
	assert.Len(t, checkIns, 1)
	assert.Equal(t, 43.73, checkIns[0].Lat)
}

func TestScanMissedChecks(t *testing.T) {
	handler := newTestRequestHandler(t)
	user := createSignedInUser(t)

	trip, err := models.CreateTrip(user.ID, "Monaco", 10)
	assert.Nil(t, err)

	// Nothing overdue yet
	rr := httptest.NewRecorder()
	handler.scanMissedChecks(rr, authenticatedRequest("GET", "/api/scan_missed_checks", nil, user.ID))
	data := dataMap(t, decodeResponse(t, rr))
	assert.Empty(t, data["missed_trips"])

	// Push the deadline into the past
	assert.Nil(t, trip.AdvanceDeadline(time.Now().UTC().Add(-40*time.Minute)))

	rr = httptest.NewRecorder()
	handler.scanMissedChecks(rr, authenticatedRequest("GET", "/api/scan_missed_checks", nil, user.ID))
	data = dataMap(t, decodeResponse(t, rr))

	missed := data["missed_trips"].([]interface{})
	assert.Len(t, missed, 1)

	overdueMinutes := missed[0].(map[string]interface{})["overdue_minutes"].(float64)
	assert.InDelta(t, 30, overdueMinutes, 1)
}

func TestTriggerSos(t *testing.T) {
	handler := newTestRequestHandler(t)
	user := createSignedInUser(t)

	assert.Nil(t, user.AddContact(&models.Contact{Name: "Pepper Potts", Phone: "4165551234"}))

	rr := httptest.NewRecorder()
	handler.triggerSos(rr, authenticatedRequest("POST", "/api/sos",
		map[string]interface{}{"lat": 43.73, "lng": "7.42", "reason": "Feeling unsafe"}, user.ID))
	assert.Equal(t, http.StatusOK, rr.Code)

	data := dataMap(t, decodeResponse(t, rr))
	assert.Equal(t, float64(1), data["contact_count"])
	assert.Equal(t, "https://www.google.com/maps?q=43.73,7.42", data["google_maps_link"])
	assert.Len(t, data["sms_results"].([]interface{}), 1)
	assert.Len(t, data["whatsapp_links"].([]interface{}), 1)
}

func TestProtectedRouteMiddleware(t *testing.T) {
	handler := newTestRequestHandler(t)

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { nextCalled = true })
	protected := handler.protectedRouteMiddleware(next)

	// No verified claims, no access
	r := httptest.NewRequest("GET", "/api/contacts", nil)
	ctx := context.WithValue(r.Context(), RequestContextKey("decodedJWT"),
		DecodedJWT{ErrorMsg: "no token provided"})
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, r.WithContext(ctx))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, nextCalled)

	// Verified claims pass through
	user := createSignedInUser(t)
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, authenticatedRequest("GET", "/api/contacts", nil, user.ID))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, nextCalled)
}
