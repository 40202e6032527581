package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/bookingportal/lib/myconfig"
	"github.com/MarcGrol/bookingportal/lib/myhttpclient"
	"github.com/MarcGrol/bookingportal/lib/mylog"
	"github.com/MarcGrol/bookingportal/lib/mypublisher"
	"github.com/MarcGrol/bookingportal/lib/mypubsub"
	"github.com/MarcGrol/bookingportal/lib/myqueue"
	"github.com/MarcGrol/bookingportal/lib/mysession"
	"github.com/MarcGrol/bookingportal/lib/mystore"
	"github.com/MarcGrol/bookingportal/lib/mytime"
	"github.com/MarcGrol/bookingportal/lib/myuuid"
	"github.com/MarcGrol/bookingportal/services/auth"
	"github.com/MarcGrol/bookingportal/services/bookingapi"
	"github.com/MarcGrol/bookingportal/services/checkout"
	"github.com/MarcGrol/bookingportal/services/gateway"
	"github.com/MarcGrol/bookingportal/services/warmup"
)

func main() {
	c := context.Background()

	cfg, err := myconfig.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %s", err)
	}
	mylog.SetLevel(cfg.Server.LogLevel)

	router := mux.NewRouter()
	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}

	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}
	defer pubsubCleanup()

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		log.Fatalf("Error creating queue: %s", err)
	}
	defer queueCleanup()

	publisher, publisherCleanup, err := mypublisher.New(c, pubsub, queue, nower)
	if err != nil {
		log.Fatalf("Error creating publisher: %s", err)
	}
	defer publisherCleanup()
	publisher.RegisterEndpoints(c, router)

	sessionStore, sessionStoreCleanup, err := mystore.New[mysession.Session](c)
	if err != nil {
		log.Fatalf("Error creating session store: %s", err)
	}
	defer sessionStoreCleanup()

	sessions := mysession.NewManager(mysession.Config{
		Secret:     cfg.Session.Secret,
		CookieName: cfg.Session.CookieName,
		MaxAge:     cfg.Session.MaxAge,
		Secure:     strings.HasPrefix(cfg.Server.BaseURL, "https://"),
	}, sessionStore, nower, uuider)

	backend := bookingapi.NewClient(cfg.Backend.BaseURL, myhttpclient.NewJSONHTTPClient("backend", cfg.Backend.Timeout))

	confirmationStore, confirmationStoreCleanup, err := mystore.New[checkout.Confirmation](c)
	if err != nil {
		log.Fatalf("Error creating confirmation store: %s", err)
	}
	defer confirmationStoreCleanup()

	checkoutService := checkout.NewWebService(checkout.Config{
		PaymentMethod:  cfg.Checkout.PaymentMethod,
		Currency:       cfg.Gateway.Currency,
		ResumeSecret:   cfg.Session.Secret,
		ResumeTokenTTL: cfg.Checkout.ResumeTokenTTL,
		ContextTTL:     cfg.Checkout.ContextTTL,
	}, sessions,
		gateway.NewBuilder(gateway.Config{
			PaymentURL:   cfg.Gateway.PaymentURL,
			MerchantCode: cfg.Gateway.MerchantCode,
			HashSecret:   cfg.Gateway.HashSecret,
			Version:      cfg.Gateway.Version,
			Locale:       cfg.Gateway.Locale,
			Currency:     cfg.Gateway.Currency,
			ReturnURL:    cfg.Server.BaseURL + "/checkout/return",
			ExpireAfter:  cfg.Gateway.ExpireAfter,
		}),
		gateway.NewValidator(cfg.Gateway.HashSecret),
		backend, confirmationStore, publisher, queue, nower, uuider)
	err = checkoutService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering checkout endpoints: %s", err)
	}

	err = auth.NewWebService(sessions, backend).RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering auth endpoints: %s", err)
	}

	err = warmup.NewService(sessionStore).RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering warmup endpoints: %s", err)
	}

	startWebServerBlocking(cfg.Server.Port, router)
}

func startWebServerBlocking(port string, router *mux.Router) {
	log.Printf("Starting webserver on port %s (try http://localhost:%s)", port, port)
	err := http.ListenAndServe(fmt.Sprintf(":%s", port), router)
	if err != nil {
		log.Fatalf("Error starting webserver on port %s: %s", port, err)
	}
}
