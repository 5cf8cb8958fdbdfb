package tsproto

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/tsproto/resend"
)

// runResender is the resend engine of one connection. It sleeps until the
// nearest retransmission deadline, resends what is due and removes the
// connection once a packet exhausted its retries. It exits when the
// connection is removed, the socket closes, or the socket drains and
// nothing is in flight.
func (s *Socket[K, D]) runResender(key K, cv *ConnectionValue[D]) {
	defer s.engines.Done()

	con := cv.c.con
	draining := s.draining
	var timer *clock.Timer

	for {
		cv.c.mu.Lock()
		if con.isClosed() {
			cv.c.mu.Unlock()
			return
		}
		res := con.resend.Poll(s.clock.Now())
		next, pending := con.resend.NextDeadline()
		if len(res.Abandoned) > 0 {
			con.signalProgress()
		}
		cv.c.mu.Unlock()

		for _, datagram := range res.Resend {
			if err := con.out.Send(s.ctx, con.addr, datagram); err != nil {
				return
			}
		}
		if len(res.Resend) > 0 {
			con.log.WithField("datagrams", len(res.Resend)).Debug("Retransmitted packets")
		}

		if len(res.Abandoned) > 0 {
			err := fmt.Errorf("%w: %s", resend.ErrResendExhausted, res.Abandoned[0])
			con.log.WithFields(logrus.Fields{
				"packets": len(res.Abandoned),
				"error":   err.Error(),
			}).Warn("Peer stopped acknowledging, removing connection")
			s.obs.ObserveConnectionFailed(con.addr, err)
			s.remove(key, cv)
			return
		}

		if !pending && draining == nil {
			return
		}

		var expired <-chan time.Time
		if pending {
			timer = s.clock.Timer(next.Sub(s.clock.Now()))
			expired = timer.C
		}

		select {
		case <-expired:
		case <-con.wake:
		case <-draining:
			draining = nil
		case <-con.closed:
			stopTimer(timer)
			return
		case <-s.ctx.Done():
			stopTimer(timer)
			return
		}
		stopTimer(timer)
		timer = nil
	}
}

func stopTimer(t *clock.Timer) {
	if t != nil {
		t.Stop()
	}
}
