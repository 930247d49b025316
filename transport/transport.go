// Package transport implements the line-framed configuration link through which an
// external controller delivers task lists. A session is one exchange: the controller
// announces START, the server answers READY, the controller streams the JSON body and
// terminates it with END, and the server acknowledges with TASKS_CREATED or ERROR.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/sensord/logging"
	"go.viam.com/sensord/taskmanager"
)

// MaxConfigBytes bounds the accumulated body of one uploaded task list.
const MaxConfigBytes = 4096

const (
	signalStart = "START"
	signalEnd   = "END"

	ackReady   = "READY"
	ackCreated = "TASKS_CREATED"
	ackError   = "ERROR"
)

// A Handler consumes one parsed task list and reports how many workers it started.
// Zero means the batch failed as a whole.
type Handler interface {
	CreateTasks(ctx context.Context, list taskmanager.TaskList) int
}

// Server answers configuration sessions. Each accepted connection carries exactly one
// session and is closed afterwards.
type Server struct {
	handler Handler
	logger  logging.Logger
}

// NewServer returns a server that hands accepted task lists to handler.
func NewServer(handler Handler, logger logging.Logger) *Server {
	return &Server{handler: handler, logger: logger}
}

// Serve accepts sessions on lis until ctx ends. The listener and any connections
// still in flight are closed on the way out.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	var activeConns sync.WaitGroup
	serveDone := make(chan struct{})
	defer close(serveDone)
	utils.PanicCapturingGo(func() {
		select {
		case <-ctx.Done():
			utils.UncheckedError(lis.Close())
		case <-serveDone:
		}
	})

	for {
		conn, err := lis.Accept()
		if err != nil {
			activeConns.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accept failed")
		}

		activeConns.Add(1)
		utils.PanicCapturingGo(func() {
			defer activeConns.Done()
			sessionDone := make(chan struct{})
			defer close(sessionDone)
			// Closing the connection is what unblocks a session read when ctx dies.
			utils.PanicCapturingGo(func() {
				select {
				case <-ctx.Done():
				case <-sessionDone:
				}
				utils.UncheckedError(conn.Close())
			})

			if err := s.ServeConn(ctx, conn); err != nil {
				s.logger.Errorw("config session failed",
					"remote", conn.RemoteAddr().String(), "error", err)
			}
		})
	}
}

// ServeConn runs one session over rw. Lines before START are treated as link noise
// and skipped. Body lines accumulate up to MaxConfigBytes; crossing the cap aborts
// the session with an ERROR ack.
func (s *Server) ServeConn(ctx context.Context, rw io.ReadWriter) error {
	scanner := bufio.NewScanner(rw)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !scanner.Scan() {
			return scanFailure(scanner, "connection closed before START")
		}
		if strings.TrimSpace(scanner.Text()) == signalStart {
			break
		}
	}

	if err := writeLine(rw, ackReady); err != nil {
		return errors.Wrap(err, "failed to acknowledge START")
	}

	var body bytes.Buffer
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !scanner.Scan() {
			return scanFailure(scanner, "connection closed before END")
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == signalEnd {
			break
		}
		if body.Len()+len(line)+1 > MaxConfigBytes {
			utils.UncheckedError(writeLine(rw, ackError))
			return errors.Errorf("task list exceeds %d bytes", MaxConfigBytes)
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}

	list, err := taskmanager.ReadTaskList(&body)
	if err != nil {
		utils.UncheckedError(writeLine(rw, ackError))
		return err
	}

	created := s.handler.CreateTasks(ctx, list)
	if created == 0 {
		s.logger.Warnw("task list produced no workers")
		return writeLine(rw, ackError)
	}

	s.logger.Infow("task list accepted", "created", created)
	return writeLine(rw, ackCreated)
}

func writeLine(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\n")
	return err
}

func scanFailure(scanner *bufio.Scanner, msg string) error {
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, msg)
	}
	return errors.New(msg)
}
