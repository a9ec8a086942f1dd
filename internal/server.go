package internal

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kazz187/delegate/internal/config"
	"github.com/kazz187/delegate/internal/event"
	"github.com/kazz187/delegate/internal/orchestrator"
	"github.com/kazz187/delegate/internal/process"
	"github.com/kazz187/delegate/internal/pushnotification"
	"github.com/kazz187/delegate/internal/question"
	"github.com/kazz187/delegate/internal/task"
	"github.com/kazz187/delegate/pkg/cerr"
	"github.com/kazz187/delegate/pkg/clog"
)

const healthCheckProcedure = "/grpc.health.v1.Health/Check"

type Server struct {
	server             *http.Server
	env                *config.Env
	orchestratorServer *orchestrator.Server
	taskServer         *task.Server
	processServer      *process.Server
	questionServer     *question.Server
	eventServer        *event.Server
	pushServer         *pushnotification.Server
}

func NewServer(
	env *config.Env,
	orchestratorServer *orchestrator.Server,
	taskServer *task.Server,
	processServer *process.Server,
	questionServer *question.Server,
	eventServer *event.Server,
	pushServer *pushnotification.Server,
) *Server {
	return &Server{
		env:                env,
		orchestratorServer: orchestratorServer,
		taskServer:         taskServer,
		processServer:      processServer,
		questionServer:     questionServer,
		eventServer:        eventServer,
		pushServer:         pushServer,
	}
}

// Handler returns the full HTTP handler: connect services, the plain /api
// routes and the health checks, behind CORS and API key authentication.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(),
			cerr.NewConvertConnectErrorChiMiddleware(),
		)
		r.Get("/reports/{processID}", s.getReport)
		r.Get("/workspaces/{workspaceID}/questions", s.listQuestions)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)
	mux.Handle(grpchealth.NewHandler(grpchealth.NewStaticChecker(
		orchestrator.ServiceName,
		task.ServiceName,
		process.ServiceName,
		question.ServiceName,
		event.ServiceName,
		pushnotification.ServiceName,
	)))

	handlerOpts := connect.WithInterceptors(s.interceptors()...)
	mux.Handle(orchestrator.NewServiceHandler(s.orchestratorServer, handlerOpts))
	mux.Handle(task.NewServiceHandler(s.taskServer, handlerOpts))
	mux.Handle(process.NewServiceHandler(s.processServer, handlerOpts))
	mux.Handle(question.NewServiceHandler(s.questionServer, handlerOpts))
	mux.Handle(event.NewServiceHandler(s.eventServer, handlerOpts))
	if s.pushServer != nil {
		mux.Handle(pushnotification.NewServiceHandler(s.pushServer, handlerOpts))
	}

	return h2c.NewHandler(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.apiKeyMiddleware(mux)), &http2.Server{})
}

// ListenAndServe serves until Shutdown. ctx is the base context of every
// request, so cancelling it ends long-lived streams and blocked questions.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) interceptors() []connect.Interceptor {
	return []connect.Interceptor{
		clog.NewSlogConnectInterceptor(),
		cerr.NewConvertConnectErrorInterceptor(),
	}
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rep, err := s.processServer.Report(ctx, chi.URLParam(r, "processID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetTextResponse(ctx, rep.String())
}

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, err := s.questionServer.ListPendingQuestions(ctx, connect.NewRequest(&question.ListPendingQuestionsRequest{
		WorkspaceID: chi.URLParam(r, "workspaceID"),
	}))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, resp.Msg)
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == healthCheckProcedure {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.env.APIKey)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
