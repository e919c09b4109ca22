package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/echocheck/echocheck/server/auth"
	"github.com/echocheck/echocheck/server/models"
	"github.com/echocheck/echocheck/utils"
)

const defaultTripIntervalMinutes = 10

type ResponsePayload struct {
	Errors  []string    `json:"errors,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

type registerParams struct {
	Name     string `json:"name" validate:"required,person_name"`
	Email    string `json:"email" validate:"required,email_shape"`
	Password string `json:"password" validate:"required"`
}

type contactParams struct {
	Name  string `json:"name" validate:"required,person_name"`
	Phone string `json:"phone" validate:"required,phone_digits"`
	Email string `json:"email" validate:"omitempty,email_shape"`
}

type tripParams struct {
	Destination     string `json:"destination" validate:"required"`
	IntervalMinutes int    `json:"interval_minutes" validate:"omitempty,min=1"`
}

type sessionData struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// missedTrip is a trip annotated with how long past its deadline it is.
type missedTrip struct {
	models.Trip
	OverdueMinutes float64 `json:"overdue_minutes"`
}

func (h *requestHandler) healthCheck(rw http.ResponseWriter, r *http.Request) {
	json.NewEncoder(rw).Encode(map[string]string{"status": "ok"})
}

func (h *requestHandler) register(rw http.ResponseWriter, r *http.Request) {
	params := registerParams{}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if errs := h.validate.Struct(params); errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	_, err := models.FindUserBy("email", params.Email)
	if err == nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"user already exists"}}, http.StatusConflict)
		return
	}
	if !isRecordNotFound(err) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	user := models.User{Name: params.Name, Email: params.Email}
	if err := models.CreateUser(&user, params.Password); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	token, err := auth.EncodeJWT(fmt.Sprint(user.ID), user.Name, h.jwtSecret)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: sessionData{Token: token, User: &user}}, http.StatusCreated)
}

func (h *requestHandler) logIn(rw http.ResponseWriter, r *http.Request) {
	params := make(map[string]string)
	json.NewDecoder(r.Body).Decode(&params)

	if params["email"] == "" || params["password"] == "" {
		writeResponse(rw, ResponsePayload{Errors: []string{"email and password are required"}}, http.StatusBadRequest)
		return
	}

	passwordHash, err := models.FindUserPasswordHash(params["email"])
	if err != nil && !isRecordNotFound(err) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	// Same response whether the email is unknown or the password is wrong.
	if err != nil || !auth.CheckPasswordHash(params["password"], passwordHash) {
		writeResponse(rw, ResponsePayload{Errors: []string{"invalid credentials"}}, http.StatusUnauthorized)
		return
	}

	user, err := models.FindUserBy("email", params["email"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	token, err := auth.EncodeJWT(fmt.Sprint(user.ID), user.Name, h.jwtSecret)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: sessionData{Token: token, User: user}})
}

func (h *requestHandler) listContacts(rw http.ResponseWriter, r *http.Request) {
	contacts, err := models.ContactsFor(currentUserID(r))
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]interface{}{"contacts": contacts}})
}

func (h *requestHandler) addContact(rw http.ResponseWriter, r *http.Request) {
	params := contactParams{}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if errs := h.validate.Struct(params); errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	contact := models.Contact{
		Name:   params.Name,
		Phone:  params.Phone,
		Email:  params.Email,
		UserID: currentUserID(r),
	}
	if err := models.CreateContact(&contact); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{"contact": contact}}, http.StatusCreated)
}

func (h *requestHandler) deleteContact(rw http.ResponseWriter, r *http.Request) {
	user := models.User{BaseModel: models.BaseModel{ID: currentUserID(r)}}

	err := user.DeleteContact(requestVar(r, "id"))
	if isRecordNotFound(err) {
		writeResponse(rw, ResponsePayload{Errors: []string{"contact not found"}}, http.StatusNotFound)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

func (h *requestHandler) createTrip(rw http.ResponseWriter, r *http.Request) {
	params := tripParams{}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if errs := h.validate.Struct(params); errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	if params.IntervalMinutes == 0 {
		params.IntervalMinutes = defaultTripIntervalMinutes
	}

	trip, err := models.CreateTrip(currentUserID(r), params.Destination, params.IntervalMinutes)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{"trip": trip}}, http.StatusCreated)
}

func (h *requestHandler) getActiveTrip(rw http.ResponseWriter, r *http.Request) {
	trip, err := models.FindActiveTrip(currentUserID(r))
	if isRecordNotFound(err) {
		// No active trip isn't an error
		json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]interface{}{"trip": nil}})
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]interface{}{"trip": trip}})
}

func (h *requestHandler) checkIn(rw http.ResponseWriter, r *http.Request) {
	params := make(map[string]interface{})
	json.NewDecoder(r.Body).Decode(&params)

	if params["trip_id"] == nil || fmt.Sprint(params["trip_id"]) == "" {
		writeResponse(rw, ResponsePayload{Errors: []string{"trip_id is required"}}, http.StatusBadRequest)
		return
	}

	lat, latErr := parseCoordinate(params["lat"])
	lng, lngErr := parseCoordinate(params["lng"])
	if latErr != nil || lngErr != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"lat and lng must be numbers"}}, http.StatusBadRequest)
		return
	}

	trip, err := models.FindOwnedActiveTrip(fmt.Sprint(params["trip_id"]), currentUserID(r))
	if isRecordNotFound(err) {
		writeResponse(rw, ResponsePayload{Errors: []string{"active trip not found"}}, http.StatusNotFound)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	err = models.CreateCheckIn(&models.CheckIn{
		UserID:    currentUserID(r),
		TripID:    trip.ID,
		Lat:       lat,
		Lng:       lng,
		Timestamp: now,
	})
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	// The deadline always advances from 'now' by the trip's stored interval,
	// however late this check-in is.
	if err := trip.AdvanceDeadline(now); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{
		Success: true,
		Data:    map[string]interface{}{"next_check_due": trip.NextCheckDue},
	})
}

func (h *requestHandler) scanMissedChecks(rw http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	trips, err := models.OverdueTrips(currentUserID(r), now)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	missedTrips := []missedTrip{}
	for _, trip := range trips {
		missedTrips = append(missedTrips, missedTrip{
			Trip:           trip,
			OverdueMinutes: utils.Round2(now.Sub(trip.NextCheckDue).Minutes()),
		})
	}

	json.NewEncoder(rw).Encode(ResponsePayload{
		Success: true,
		Data:    map[string]interface{}{"missed_trips": missedTrips},
	})
}

func (h *requestHandler) triggerSos(rw http.ResponseWriter, r *http.Request) {
	params := make(map[string]interface{})
	json.NewDecoder(r.Body).Decode(&params)

	report, err := h.broadcaster.Trigger(
		currentUserID(r),
		stringArg(params, "lat"),
		stringArg(params, "lng"),
		stringArg(params, "reason"),
	)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: report})
}

// ---------------------------------------------------------------------------------//
// Handler helper functions
// --------------------------------------------------------------------------------//

func parseCoordinate(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("not a number: %v", value)
	}
}

func stringArg(params map[string]interface{}, key string) string {
	if params[key] == nil {
		return ""
	}

	return fmt.Sprint(params[key])
}
