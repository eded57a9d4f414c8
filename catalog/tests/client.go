package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"songxs_platform/catalog/ingest"
	"songxs_platform/catalog/services"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &loginInfo{Email: email, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	if r.login != nil {
		req.SetBasicAuth(r.login.Email, r.login.Password)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		if res.StatusCode == http.StatusForbidden {
			return ErrForbidden
		}
		if res.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %v request to endpoint %v, content '%v'", ErrNotFound, r.method, r.endpoint, w.Body.String())
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Put(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "PUT", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *client) signup(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/signup").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) login(login loginInfo) error {
	var res map[string]string
	err := c.Get("/user/login").Login(login.Email, login.Password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

func (c *client) userInfo() (services.UserInfo, error) {
	var res services.UserInfo
	err := c.Get("/user/info").Do(&res)
	return res, err
}

func (c *client) listUsers() ([]services.UserInfo, error) {
	var res []services.UserInfo
	err := c.Get("/user/list").Do(&res)
	return res, err
}

func (c *client) importPlaylist(playlist, fetchMode string) (ingest.Report, error) {
	body := map[string]string{"playlist": playlist, "fetch_mode": fetchMode}

	var res ingest.Report
	err := c.Post("/import/playlist").Json(body).Do(&res)
	return res, err
}

func (c *client) importIsrcs(isrcs []string, fetchMode string) (ingest.Report, error) {
	body := map[string]interface{}{"isrcs": isrcs, "fetch_mode": fetchMode}

	var res ingest.Report
	err := c.Post("/import/isrcs").Json(body).Do(&res)
	return res, err
}

func (c *client) listTracks() ([]services.TrackInfo, error) {
	var res []services.TrackInfo
	err := c.Get("/track/list").Do(&res)
	return res, err
}

func (c *client) searchTracks(query string) ([]services.TrackInfo, error) {
	var res []services.TrackInfo
	err := c.Get(fmt.Sprintf("/track/search?q=%v", query)).Do(&res)
	return res, err
}

func (c *client) getTrack(trackId string) (services.TrackInfo, error) {
	var res services.TrackInfo
	err := c.Get(fmt.Sprintf("/track/%v", trackId)).Do(&res)
	return res, err
}

func (c *client) deleteTrack(trackId string) error {
	return c.Delete(fmt.Sprintf("/track/%v", trackId)).Do(nil)
}

func (c *client) setClearance(trackId, clearanceType string, price *float64) error {
	body := map[string]interface{}{"clearance_type": clearanceType}
	if price != nil {
		body["clearance_price"] = *price
	}
	return c.Put(fmt.Sprintf("/track/%v/clearance", trackId)).Json(body).Do(nil)
}

func (c *client) createSplitSheet(req interface{}) (services.SplitSheetInfo, error) {
	var res services.SplitSheetInfo
	err := c.Post("/splitsheet/create").Json(req).Do(&res)
	return res, err
}

func (c *client) getSplitSheet(sheetId string) (services.SplitSheetInfo, error) {
	var res services.SplitSheetInfo
	err := c.Get(fmt.Sprintf("/splitsheet/%v", sheetId)).Do(&res)
	return res, err
}

func (c *client) listSplitSheets(trackId string) ([]services.SplitSheetInfo, error) {
	var res []services.SplitSheetInfo
	err := c.Get(fmt.Sprintf("/splitsheet/list/%v", trackId)).Do(&res)
	return res, err
}

func (c *client) sign(token, signatureData string) (map[string]interface{}, error) {
	body := map[string]string{"signature_data": signatureData}

	var res map[string]interface{}
	err := c.Post(fmt.Sprintf("/sign/%v", token)).Json(body).Do(&res)
	return res, err
}
