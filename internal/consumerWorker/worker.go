package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"eventhub/internal/dto"
	"eventhub/internal/mailer"
	"eventhub/internal/rabbit"
)

// Reader drains the outbound mail queue and hands each job to the mailer.
type Reader struct {
	RMQ    *rabbit.Client
	mail   *mailer.Mailer
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, mail *mailer.Mailer) *Reader {
	return &Reader{
		RMQ:  rmq,
		mail: mail,
		done: make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("Mail queue reader started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			var job dto.MailJob
			if err := json.Unmarshal(body, &job); err != nil {
				zlog.Logger.Error().
					Err(err).
					Msgf("Failed to unmarshal mail job: %s", string(body))
				return err
			}

			zlog.Logger.Info().
				Str("kind", job.Kind).
				Msg("Received mail job from queue")

			// Delivery is fire-and-forget: a failed send is logged and the
			// job acked, never requeued.
			if err := r.mail.Send(job); err != nil {
				zlog.Logger.Warn().
					Err(err).
					Str("kind", job.Kind).
					Msg("Failed to send queued email")
			}
			return nil
		}

		if err := r.RMQ.Consume(handler); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("Mail queue reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
