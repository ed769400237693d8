package api

import (
	"time"

	"github.com/yourname/babysleep/internal"
	"github.com/yourname/babysleep/internal/service"
)

type App interface {
	Logger() internal.Logger
	Sleep() *service.SleepService
	// Location is the zone calendar days are computed in.
	Location() *time.Location
}

type Server struct {
	logger internal.Logger
	sleep  *service.SleepService
	loc    *time.Location
}

func NewServer(logger internal.Logger, sleep *service.SleepService, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	return &Server{logger: logger, sleep: sleep, loc: loc}
}

func (s *Server) Logger() internal.Logger      { return s.logger }
func (s *Server) Sleep() *service.SleepService { return s.sleep }
func (s *Server) Location() *time.Location     { return s.loc }

var _ App = (*Server)(nil)
