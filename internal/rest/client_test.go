package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matheus3301/chatsync/internal/chaterr"
	"github.com/matheus3301/chatsync/internal/model"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

var ts0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func testServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var reads []string

	r := chi.NewRouter()
	r.Route("/chat", func(r chi.Router) {
		r.Use(requireBearer)
		r.Get("/conversations", func(w http.ResponseWriter, r *http.Request) {
			last := model.Message{ID: "m1", SenderID: "u1", ReceiverID: "me", Content: "hi", Timestamp: ts0}
			writeJSON(w, http.StatusOK, []model.Conversation{
				{ID: "c1", Peer: model.User{ID: "u1", Username: "ana"}, LastMessage: &last, UnreadCount: 2},
			})
		})
		r.Get("/conversations/{peerID}", func(w http.ResponseWriter, r *http.Request) {
			peer := chi.URLParam(r, "peerID")
			switch peer {
			case "u1":
				writeJSON(w, http.StatusOK, map[string]any{
					"messages": []model.Message{{ID: "m1", SenderID: "u1", ReceiverID: "me", Content: "hi", Timestamp: ts0}},
					"user":     model.User{ID: "u1", Username: "ana", Email: "ana@example.com"},
				})
			case "u2":
				writeJSON(w, http.StatusOK, map[string]any{"messages": []model.Message{}})
			default:
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such user"})
			}
		})
		r.Post("/messages", func(w http.ResponseWriter, r *http.Request) {
			var req sendRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": "content required"})
				return
			}
			writeJSON(w, http.StatusCreated, model.Message{
				ID: "m2", SenderID: "me", ReceiverID: req.ReceiverID, Content: req.Content, Timestamp: ts0,
			})
		})
		r.Post("/messages/{id}/read", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			if id == "boom" {
				http.Error(w, "internal failure", http.StatusInternalServerError)
				return
			}
			reads = append(reads, id)
			w.WriteHeader(http.StatusNoContent)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &reads
}

func TestListConversations(t *testing.T) {
	srv, _ := testServer(t)
	c := New(srv.URL+"/", WithTokenSource(staticToken("tok-1")))

	convs, err := c.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("got %d conversations, want 1", len(convs))
	}
	got := convs[0]
	if got.Peer.ID != "u1" || got.UnreadCount != 2 || got.LastMessage == nil || got.LastMessage.Content != "hi" {
		t.Errorf("unexpected conversation: %+v", got)
	}
	if !got.LastMessage.Timestamp.Equal(ts0) {
		t.Errorf("timestamp = %v, want %v", got.LastMessage.Timestamp, ts0)
	}
}

func TestGetConversation(t *testing.T) {
	srv, _ := testServer(t)
	c := New(srv.URL, WithTokenSource(staticToken("tok-1")))

	t.Run("with embedded user", func(t *testing.T) {
		d, err := c.GetConversation(context.Background(), "u1")
		if err != nil {
			t.Fatalf("GetConversation: %v", err)
		}
		if len(d.Messages) != 1 || d.User == nil || d.User.Username != "ana" {
			t.Errorf("unexpected detail: %+v", d)
		}
	})

	t.Run("without user", func(t *testing.T) {
		d, err := c.GetConversation(context.Background(), "u2")
		if err != nil {
			t.Fatalf("GetConversation: %v", err)
		}
		if d.User != nil {
			t.Errorf("User = %+v, want nil", d.User)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := c.GetConversation(context.Background(), "nobody")
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("err = %v, want *StatusError", err)
		}
		if se.Status != http.StatusNotFound || se.Message != "no such user" {
			t.Errorf("got %d %q", se.Status, se.Message)
		}
	})
}

func TestSendMessage(t *testing.T) {
	srv, _ := testServer(t)
	c := New(srv.URL, WithTokenSource(staticToken("tok-1")))

	m, err := c.SendMessage(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if m.ID != "m2" || m.ReceiverID != "u1" || m.Content != "hello" {
		t.Errorf("unexpected message: %+v", m)
	}

	_, err = c.SendMessage(context.Background(), "u1", "")
	if ce := chaterr.Classify(err, chaterr.KindNetwork); ce.Kind != chaterr.KindServer || ce.Code != 400 {
		t.Errorf("classified = %v, want server 400", ce)
	}
}

func TestUnusableSuccessResponseIsServerError(t *testing.T) {
	tests := []struct {
		name string
		body string
		send bool
	}{
		{"empty send body", "", true},
		{"send body without id", `{"senderId":"me","receiverId":"u1","content":"hello"}`, true},
		{"undecodable send body", `{"id":`, true},
		{"undecodable list body", `[{"id":1`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			c := New(srv.URL)

			var err error
			if tt.send {
				var m *model.Message
				m, err = c.SendMessage(context.Background(), "u1", "hello")
				if m != nil {
					t.Errorf("message = %+v, want nil", m)
				}
			} else {
				_, err = c.ListConversations(context.Background())
			}

			var re *ResponseError
			if !errors.As(err, &re) || re.Status != http.StatusCreated {
				t.Fatalf("err = %v, want ResponseError with status 201", err)
			}
			if ce := chaterr.Classify(err, chaterr.KindNetwork); ce.Kind != chaterr.KindServer {
				t.Errorf("classified = %v, want server", ce)
			}
		})
	}
}

func TestMarkRead(t *testing.T) {
	srv, reads := testServer(t)
	c := New(srv.URL, WithTokenSource(staticToken("tok-1")))

	if err := c.MarkRead(context.Background(), "m1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if len(*reads) != 1 || (*reads)[0] != "m1" {
		t.Errorf("reads = %v, want [m1]", *reads)
	}

	err := c.MarkRead(context.Background(), "boom")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != 500 || se.Message != "internal failure" {
		t.Errorf("err = %v, want 500 internal failure", err)
	}
}

func TestUnauthorizedClassifiesAsAuth(t *testing.T) {
	srv, _ := testServer(t)
	c := New(srv.URL, WithTokenSource(staticToken("expired")))

	_, err := c.SendMessage(context.Background(), "u1", "hello")
	ce := chaterr.Classify(err, chaterr.KindNetwork)
	if ce.Kind != chaterr.KindAuth || ce.Code != http.StatusUnauthorized {
		t.Errorf("classified = %v, want auth 401", ce)
	}
}

func TestNoResponseClassifiesAsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, WithTimeout(time.Second))
	_, err := c.ListConversations(context.Background())
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if ce := chaterr.Classify(err, chaterr.KindNetwork); ce.Kind != chaterr.KindNetwork {
		t.Errorf("classified = %v, want network", ce)
	}
}

func TestNewStatusErrorFallbacks(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"message":"bad"}`, "bad"},
		{`{"error":"worse"}`, "worse"},
		{`plain text`, "plain text"},
		{``, "Bad Gateway"},
	}
	for _, tt := range tests {
		got := newStatusError(http.StatusBadGateway, []byte(tt.body))
		if got.Message != tt.want {
			t.Errorf("body %q: Message = %q, want %q", tt.body, got.Message, tt.want)
		}
	}
}
