package sisweb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testExecution = "e1s1"

// stands in for cas.uth.gr: serves the login form with an execution
// token, checks credentials on POST and redirects back to the service
// url with a ticket-granting cookie
func mockCas(t *testing.T, username, password string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		service := r.URL.Query().Get("service")

		switch r.Method {
		case http.MethodGet:
			http.SetCookie(w, &http.Cookie{Name: "CASPRIVACY", Value: "1"})
			fmt.Fprintf(w, `<html><body><form>
<input name="username"><input name="password">
<input type="hidden" name="execution" value="%s">
</form></body></html>`, testExecution)

		case http.MethodPost:
			if err := r.ParseForm(); err != nil {
				t.Fatal(err)
			}
			ok := r.PostForm.Get("username") == username &&
				r.PostForm.Get("password") == password &&
				r.PostForm.Get("execution") == testExecution &&
				r.PostForm.Get("_eventId") == "submit"
			if !ok {
				// CAS re-renders its form on bad credentials, no redirect
				fmt.Fprint(w, `<html><body>Invalid credentials.</body></html>`)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "TGC", Value: "TGT-1-abcdef"})
			w.Header().Set("Location", service+"?ticket=ST-1-xyz")
			w.WriteHeader(http.StatusFound)
		}
	}))
}

// stands in for sis-web.uth.gr: swaps the ticket for an application
// session cookie, then serves the transcript page to holders of it
func mockSis(t *testing.T, gradesHtml string) *httptest.Server {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ticket := r.URL.Query().Get("ticket"); ticket != "" {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "sis-session-1"})
			w.Header().Set("Location", server.URL+r.URL.Path)
			w.WriteHeader(http.StatusFound)
			return
		}
		if !strings.Contains(r.Header.Get("Cookie"), "JSESSIONID=sis-session-1") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, gradesHtml)
	}))
	return server
}

func newTestClient(cas, sis *httptest.Server, registry *SessionRegistry) *Client {
	return NewClient(ClientOptions{
		CasLoginUrl: cas.URL + "/login",
		GradesUrl:   sis.URL + "/student/grades/list_diploma",
		Timeout:     time.Second * 5,
	}, registry)
}

func TestLoginAndFetchGrades(t *testing.T) {
	cas := mockCas(t, "student", "hunter2")
	defer cas.Close()
	sis := mockSis(t, diplomaPage(
		diplomaRow("Υ101", "Φυσική Ι", "8,5", true),
		diplomaRow("Υ102", "Ανάλυση Ι", "6,0", true),
		diplomaRow("Υ103", "Χημεία", "4,0", false),
	))
	defer sis.Close()

	registry := NewSessionRegistry(time.Hour)
	client := newTestClient(cas, sis, registry)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	id, err := client.Login(ctx, "student", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	require.NotEmpty(t, id)

	session, ok := registry.Get(id)
	require.True(t, ok)
	require.Equal(t, "student", session.Username)
	require.Contains(t, session.Cookies, "TGC=")
	require.Contains(t, session.Cookies, "JSESSIONID=")

	records, err := client.FetchGrades(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, records, 3)
	require.Equal(t, []bool{true, true, false}, []bool{
		records[0].Passed, records[1].Passed, records[2].Passed,
	})
	require.Equal(t, []float64{8.5, 6.0, 4.0}, []float64{
		records[0].Grade, records[1].Grade, records[2].Grade,
	})
}

func TestLoginRejected(t *testing.T) {
	cas := mockCas(t, "student", "hunter2")
	defer cas.Close()
	sis := mockSis(t, diplomaPage())
	defer sis.Close()

	client := newTestClient(cas, sis, NewSessionRegistry(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	_, err := client.Login(ctx, "student", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUpstreamDown(t *testing.T) {
	cas := httptest.NewServer(http.NotFoundHandler())
	sis := mockSis(t, diplomaPage())
	defer sis.Close()

	client := newTestClient(cas, sis, NewSessionRegistry(time.Hour))
	// the CAS host is gone entirely, not just rejecting logins
	cas.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	_, err := client.Login(ctx, "student", "hunter2")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestFetchGradesEmptyPage(t *testing.T) {
	cas := mockCas(t, "student", "hunter2")
	defer cas.Close()
	sis := mockSis(t, `<html><body><p>Δεν υπάρχουν βαθμοί</p></body></html>`)
	defer sis.Close()

	client := newTestClient(cas, sis, NewSessionRegistry(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	id, err := client.Login(ctx, "student", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.FetchGrades(ctx, id)
	require.ErrorIs(t, err, ErrExtractionEmpty)
}

func TestFetchGradesUnknownSession(t *testing.T) {
	cas := mockCas(t, "student", "hunter2")
	defer cas.Close()
	sis := mockSis(t, diplomaPage())
	defer sis.Close()

	client := newTestClient(cas, sis, NewSessionRegistry(time.Hour))

	_, err := client.FetchGrades(context.Background(), "never-issued")
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestAutomationErrorUnwraps(t *testing.T) {
	cause := errors.New("selector timed out")
	err := &AutomationError{Step: "grades table", Err: cause}
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "grades table")
}
