package checkout

import (
	"context"
	"fmt"

	"github.com/MarcGrol/bookingportal/lib/mylog"
	"github.com/MarcGrol/bookingportal/lib/mypublisher"
	"github.com/MarcGrol/bookingportal/lib/myqueue"
	"github.com/MarcGrol/bookingportal/lib/mysession"
	"github.com/MarcGrol/bookingportal/lib/mystore"
	"github.com/MarcGrol/bookingportal/lib/mytime"
	"github.com/MarcGrol/bookingportal/lib/myuuid"
	"github.com/MarcGrol/bookingportal/services/bookingapi"
	"github.com/MarcGrol/bookingportal/services/checkoutapi"
	"github.com/MarcGrol/bookingportal/services/checkoutevents"
	"github.com/MarcGrol/bookingportal/services/gateway"
)

type service struct {
	cfg           Config
	sessions      *mysession.Manager
	contexts      checkoutapi.ContextStore
	builder       *gateway.Builder
	validator     *gateway.Validator
	backend       bookingapi.Backend
	confirmations mystore.Store[Confirmation]
	resumeTokens  resumeTokens
	publisher     mypublisher.Publisher
	queue         myqueue.TaskQueuer
	nower         mytime.Nower
	uuider        myuuid.UUIDer
	logger        mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(cfg Config, sessions *mysession.Manager, builder *gateway.Builder, validator *gateway.Validator, backend bookingapi.Backend,
	confirmations mystore.Store[Confirmation], publisher mypublisher.Publisher, queue myqueue.TaskQueuer, nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) *service {
	return &service{
		cfg:           cfg,
		sessions:      sessions,
		contexts:      checkoutapi.NewContextStore(sessions),
		builder:       builder,
		validator:     validator,
		backend:       backend,
		confirmations: confirmations,
		resumeTokens:  newResumeTokens(cfg.ResumeSecret, cfg.ResumeTokenTTL, nower),
		publisher:     publisher,
		queue:         queue,
		nower:         nower,
		uuider:        uuider,
		logger:        logger,
	}
}

func (s *service) CreateTopics(c context.Context) error {
	err := s.publisher.CreateTopic(c, checkoutevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", checkoutevents.TopicName, err)
	}

	return nil
}

// loadContext treats an unreadable context as absent
func (s *service) loadContext(c context.Context, session *mysession.Session) (checkoutapi.CheckoutContext, bool) {
	cc, found, err := s.contexts.Load(c, session)
	if err != nil {
		s.logger.Log(c, sessionUID(session), mylog.SeverityWarn, "Error loading checkout context: %s", err)
		return checkoutapi.CheckoutContext{}, false
	}
	return cc, found
}

func (s *service) clearContextHolding(c context.Context, session *mysession.Session, bookingIDs []string) {
	cc, found := s.loadContext(c, session)
	if !found || !cc.HoldsExactly(bookingIDs) {
		return
	}
	err := s.contexts.Clear(c, session)
	if err != nil {
		s.logger.Log(c, cc.Reference, mylog.SeverityError, "Error clearing checkout context: %s", err)
	}
}

func isAuthenticated(session *mysession.Session) bool {
	return session != nil && session.IsAuthenticated()
}

func sessionUID(session *mysession.Session) string {
	if session == nil {
		return ""
	}
	return session.UID
}

func userOf(session *mysession.Session) string {
	if session == nil {
		return ""
	}
	return session.UserUID
}
