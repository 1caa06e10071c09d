package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/greeting"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/push"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/store"
)

// Sender is a minimal interface the scheduler needs to send a text message.
// telegram.Router implements it.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// PushSender delivers browser push notifications. push.Sender implements it.
type PushSender interface {
	Send(ctx context.Context, tokens []string, n push.Notification) (push.Report, error)
}

// Report summarizes one evaluate-and-dispatch pass.
type Report struct {
	At        time.Time `json:"at"`
	Evaluated int       `json:"evaluated"`
	Malformed int       `json:"malformed"`
	Due       int       `json:"due"`
	Sent      int       `json:"sent"`
	Skipped   int       `json:"skipped"` // already delivered by an overlapping tick
	Failed    int       `json:"failed"`
	Pruned    int       `json:"pruned_tokens"`
	Expired   int       `json:"expired_deliveries"`
}

// Delivery is the outcome of sending one message to one user.
type Delivery struct {
	PushSent    int    `json:"push_sent"`
	PushFailed  int    `json:"push_failed"`
	Pruned      int    `json:"pruned_tokens"`
	TelegramOK  bool   `json:"telegram_sent"`
	TelegramErr string `json:"telegram_error,omitempty"`
}

func (d Delivery) delivered() bool { return d.PushSent > 0 || d.TelegramOK }

// Scheduler periodically evaluates birthday records and dispatches due notifications.
type Scheduler struct {
	repo     store.Repo
	log      *zap.Logger
	eval     *domain.Evaluator
	composer *greeting.Composer
	push     PushSender
	sender   Sender
	interval time.Duration
	link     string
	now      func() time.Time
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithPush enables FCM delivery.
func WithPush(p PushSender) Option { return func(s *Scheduler) { s.push = p } }

// WithSender enables Telegram delivery.
func WithSender(snd Sender) Option { return func(s *Scheduler) { s.sender = snd } }

// WithInterval overrides the one-minute tick.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLink sets the URL opened when a push notification is clicked.
func WithLink(url string) Option { return func(s *Scheduler) { s.link = url } }

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// New creates a new Scheduler. Channels without a configured sender are skipped.
func New(repo store.Repo, log *zap.Logger, composer *greeting.Composer, opts ...Option) *Scheduler {
	if composer == nil {
		composer = greeting.NewComposer(nil, log)
	}
	s := &Scheduler{
		repo:     repo,
		log:      log,
		eval:     domain.NewEvaluator(log),
		composer: composer,
		interval: time.Minute,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run starts the loop until ctx is canceled. Ticks are aligned to the start of a minute
// so exact-minute notification times are not skipped.
func (s *Scheduler) Run(ctx context.Context) {
	now := s.now()
	wait := now.Truncate(time.Minute).Add(time.Minute).Sub(now)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.log.Info("scheduler stopping")
		return
	case <-timer.C:
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	rep, err := s.Check(ctx, s.now())
	if err != nil {
		s.log.Error("birthday check failed", zap.Error(err))
		return
	}
	if rep.Due > 0 {
		s.log.Info("birthday check done",
			zap.Int("evaluated", rep.Evaluated),
			zap.Int("due", rep.Due),
			zap.Int("sent", rep.Sent),
			zap.Int("skipped", rep.Skipped),
			zap.Int("failed", rep.Failed),
		)
	}
}

type snapshot struct {
	records  []domain.BirthdayRecord
	settings map[string]domain.UserSettings
}

func (s *Scheduler) loadSnapshot(ctx context.Context, userID string) (snapshot, error) {
	var (
		records []domain.BirthdayRecord
		rows    []domain.SettingRow
		err     error
	)
	if userID == "" {
		records, err = s.repo.ListEnabledBirthdays(ctx)
		if err != nil {
			return snapshot{}, fmt.Errorf("list birthdays: %w", err)
		}
		rows, err = s.repo.ListSettings(ctx)
	} else {
		records, err = s.repo.ListBirthdays(ctx, userID)
		if err != nil {
			return snapshot{}, fmt.Errorf("list birthdays: %w", err)
		}
		rows, err = s.repo.ListSettings(ctx, userID)
	}
	if err != nil {
		return snapshot{}, fmt.Errorf("list settings: %w", err)
	}

	settings, problems := domain.FoldSettings(rows)
	for _, p := range problems {
		s.log.Warn("ignoring malformed setting", zap.Error(p))
	}
	return snapshot{records: records, settings: settings}, nil
}

// deliveryRetention is how long ledger rows are kept. It covers the widest gap
// between a local fire date and the UTC date.
const deliveryRetention = 2 * 24 * time.Hour

// Check runs one evaluate-and-dispatch pass for instant now. A fetch failure aborts
// the pass; delivery failures are logged and counted.
func (s *Scheduler) Check(ctx context.Context, now time.Time) (Report, error) {
	rep := Report{At: now.UTC()}

	snap, err := s.loadSnapshot(ctx, "")
	if err != nil {
		return rep, err
	}

	evs := s.eval.Evaluate(now, snap.records, snap.settings)
	rep.Evaluated = len(evs)
	for _, ev := range evs {
		if ev.Err != nil {
			rep.Malformed++
		}
	}

	for _, ev := range domain.Due(evs) {
		rep.Due++
		rec := ev.Record

		claimed, err := s.repo.ClaimDelivery(ctx, domain.DeliveryFor(ev), now)
		if err != nil {
			s.log.Error("claim delivery failed", zap.String("record_id", rec.ID), zap.Error(err))
			rep.Failed++
			continue
		}
		if !claimed {
			rep.Skipped++
			continue
		}

		msg := s.composer.Compose(ctx, rec.FullName(), rec.Phone, ev.Age)
		d := s.deliver(ctx, rec.UserID, snap.settings[rec.UserID], msg, map[string]string{
			"type":        "birthday",
			"birthday_id": rec.ID,
			"tag":         "birthday-" + rec.ID,
		})
		rep.Pruned += d.Pruned
		if d.delivered() {
			rep.Sent++
		} else {
			rep.Failed++
		}
		s.log.Info("birthday notification",
			zap.String("record_id", rec.ID),
			zap.String("user_id", rec.UserID),
			zap.String("time", ev.MatchedTime),
			zap.String("tz", ev.Timezone),
			zap.Int("push_sent", d.PushSent),
			zap.Bool("telegram", d.TelegramOK),
		)
	}

	cutoff := domain.FormatDate(now.UTC().Add(-deliveryRetention))
	n, err := s.repo.PruneDeliveries(ctx, cutoff)
	if err != nil {
		s.log.Warn("prune delivery ledger failed", zap.Error(err))
	}
	rep.Expired = int(n)
	return rep, nil
}

// deliver sends msg to every channel the user has configured.
func (s *Scheduler) deliver(ctx context.Context, userID string, us domain.UserSettings, msg greeting.Message, data map[string]string) Delivery {
	var d Delivery

	if s.push != nil {
		eps, err := s.repo.ListPushTokens(ctx, userID)
		if err != nil {
			s.log.Error("list push tokens failed", zap.String("user_id", userID), zap.Error(err))
		} else if len(eps) > 0 {
			tokens := make([]string, len(eps))
			for i, ep := range eps {
				tokens[i] = ep.Token
			}
			body := msg.Body
			if msg.Wish != "" {
				body += "\n" + msg.Wish
			}
			pr, err := s.push.Send(ctx, tokens, push.Notification{
				Title: msg.Title,
				Body:  body,
				Link:  s.link,
				Data:  data,
			})
			if err != nil {
				s.log.Warn("push send failed", zap.String("user_id", userID), zap.Error(err))
			}
			d.PushSent = pr.SuccessCount()
			d.PushFailed = len(pr.Results) - d.PushSent
			d.Pruned = s.prune(ctx, userID, pr.InvalidTokens())
		}
	}

	if s.sender != nil && us.TelegramChatID != 0 {
		if err := s.sender.SendMessage(us.TelegramChatID, msg.Text()); err != nil {
			s.log.Warn("telegram send failed", zap.String("user_id", userID), zap.Int64("chatID", us.TelegramChatID), zap.Error(err))
			d.TelegramErr = err.Error()
		} else {
			d.TelegramOK = true
		}
	}
	return d
}

// prune removes permanently invalid tokens; failures are only logged.
func (s *Scheduler) prune(ctx context.Context, userID string, tokens []string) int {
	if len(tokens) == 0 {
		return 0
	}
	n, err := s.repo.DeletePushTokens(ctx, tokens...)
	if err != nil {
		s.log.Warn("prune push tokens failed", zap.String("user_id", userID), zap.Error(err))
		return 0
	}
	s.log.Info("pruned invalid push tokens", zap.String("user_id", userID), zap.Int64("count", n))
	return int(n)
}

// Preview evaluates one user's records at now without sending anything.
func (s *Scheduler) Preview(ctx context.Context, userID string, now time.Time) ([]domain.Evaluation, error) {
	snap, err := s.loadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.eval.Evaluate(now, snap.records, snap.settings), nil
}

// Upcoming lists one user's birthdays within the next days.
func (s *Scheduler) Upcoming(ctx context.Context, userID string, now time.Time, days int) ([]domain.Upcoming, error) {
	snap, err := s.loadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.UpcomingBirthdays(now, snap.records, snap.settings, days), nil
}

// SendTest pushes a test notification to every channel of the user.
func (s *Scheduler) SendTest(ctx context.Context, userID string) (Delivery, error) {
	rows, err := s.repo.ListSettings(ctx, userID)
	if err != nil {
		return Delivery{}, fmt.Errorf("list settings: %w", err)
	}
	settings, _ := domain.FoldSettings(rows)
	msg := greeting.Message{
		Title: "🔔 Test notification",
		Body:  "Birthday reminders are set up correctly.",
	}
	return s.deliver(ctx, userID, settings[userID], msg, map[string]string{"type": "test", "tag": "test"}), nil
}
