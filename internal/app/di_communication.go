package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/22club/communications/internal/communication/channel"
	communicationHTTP "github.com/22club/communications/internal/communication/http"
	communicationRepository "github.com/22club/communications/internal/communication/repository"
	"github.com/22club/communications/internal/communication/resolver"
	communicationUseCase "github.com/22club/communications/internal/communication/usecase"
	"github.com/22club/communications/internal/retry"
)

const providerRequestTimeout = 30 * time.Second

// communicationStore is the full method set of the communication repositories.
type communicationStore interface {
	communicationUseCase.CommunicationRepository
	channel.CommunicationRepository
	resolver.CommunicationRepository
}

// recipientStore is the full method set of the recipient repositories.
type recipientStore interface {
	communicationUseCase.RecipientRepository
	channel.RecipientRepository
	resolver.RecipientRepository
}

// directoryStore is the full method set of the directory repositories.
type directoryStore interface {
	channel.DirectoryRepository
	resolver.DirectoryRepository
}

// CommunicationRepository returns the communication repository based on database driver.
func (c *Container) CommunicationRepository() (communicationStore, error) {
	var err error
	c.communicationRepoInit.Do(func() {
		c.communicationRepo, err = c.initCommunicationRepository()
		if err != nil {
			c.initErrors["communicationRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["communicationRepo"]; exists {
		return nil, storedErr
	}
	return c.communicationRepo, nil
}

// RecipientRepository returns the recipient repository based on database driver.
func (c *Container) RecipientRepository() (recipientStore, error) {
	var err error
	c.recipientRepoInit.Do(func() {
		c.recipientRepo, err = c.initRecipientRepository()
		if err != nil {
			c.initErrors["recipientRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recipientRepo"]; exists {
		return nil, storedErr
	}
	return c.recipientRepo, nil
}

// DirectoryRepository returns the profile and push token directory based on database driver.
func (c *Container) DirectoryRepository() (directoryStore, error) {
	var err error
	c.directoryRepoInit.Do(func() {
		c.directoryRepo, err = c.initDirectoryRepository()
		if err != nil {
			c.initErrors["directoryRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["directoryRepo"]; exists {
		return nil, storedErr
	}
	return c.directoryRepo, nil
}

// DispatchUseCase returns the dispatch use case.
func (c *Container) DispatchUseCase() (communicationUseCase.DispatchUseCase, error) {
	var err error
	c.dispatchUseCaseInit.Do(func() {
		c.dispatchUseCase, err = c.initDispatchUseCase()
		if err != nil {
			c.initErrors["dispatchUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dispatchUseCase"]; exists {
		return nil, storedErr
	}
	return c.dispatchUseCase, nil
}

// RecipientUseCase returns the recipient use case.
func (c *Container) RecipientUseCase() (communicationUseCase.RecipientUseCase, error) {
	var err error
	c.recipientUseCaseInit.Do(func() {
		c.recipientUseCase, err = c.initRecipientUseCase()
		if err != nil {
			c.initErrors["recipientUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recipientUseCase"]; exists {
		return nil, storedErr
	}
	return c.recipientUseCase, nil
}

// ScheduledUseCase returns the scheduled communications use case.
func (c *Container) ScheduledUseCase() (communicationUseCase.ScheduledUseCase, error) {
	var err error
	c.scheduledUseCaseInit.Do(func() {
		c.scheduledUseCase, err = c.initScheduledUseCase()
		if err != nil {
			c.initErrors["scheduledUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["scheduledUseCase"]; exists {
		return nil, storedErr
	}
	return c.scheduledUseCase, nil
}

// TrackingUseCase returns the delivery tracking use case.
func (c *Container) TrackingUseCase() (communicationUseCase.TrackingUseCase, error) {
	var err error
	c.trackingUseCaseInit.Do(func() {
		c.trackingUseCase, err = c.initTrackingUseCase()
		if err != nil {
			c.initErrors["trackingUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["trackingUseCase"]; exists {
		return nil, storedErr
	}
	return c.trackingUseCase, nil
}

// CommunicationHandler returns the communication HTTP handler.
func (c *Container) CommunicationHandler() (*communicationHTTP.CommunicationHandler, error) {
	var err error
	c.communicationHandlerInit.Do(func() {
		c.communicationHandler, err = c.initCommunicationHandler()
		if err != nil {
			c.initErrors["communicationHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["communicationHandler"]; exists {
		return nil, storedErr
	}
	return c.communicationHandler, nil
}

// WebhookHandler returns the provider webhook HTTP handler.
func (c *Container) WebhookHandler() (*communicationHTTP.WebhookHandler, error) {
	var err error
	c.webhookHandlerInit.Do(func() {
		c.webhookHandler, err = c.initWebhookHandler()
		if err != nil {
			c.initErrors["webhookHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["webhookHandler"]; exists {
		return nil, storedErr
	}
	return c.webhookHandler, nil
}

// initCommunicationRepository creates the communication repository based on the database driver.
func (c *Container) initCommunicationRepository() (communicationStore, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for communication repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return communicationRepository.NewPostgreSQLCommunicationRepository(db), nil
	case "mysql":
		return communicationRepository.NewMySQLCommunicationRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initRecipientRepository creates the recipient repository based on the database driver.
func (c *Container) initRecipientRepository() (recipientStore, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for recipient repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return communicationRepository.NewPostgreSQLRecipientRepository(db), nil
	case "mysql":
		return communicationRepository.NewMySQLRecipientRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initDirectoryRepository creates the directory repository based on the database driver.
func (c *Container) initDirectoryRepository() (directoryStore, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for directory repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return communicationRepository.NewPostgreSQLDirectoryRepository(db), nil
	case "mysql":
		return communicationRepository.NewMySQLDirectoryRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initResolver creates the recipient resolver. Audience counts are cached in
// Redis when it is configured.
func (c *Container) initResolver() (resolver.Resolver, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for resolver: %w", err)
	}

	communicationRepo, err := c.CommunicationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get communication repository for resolver: %w", err)
	}

	recipientRepo, err := c.RecipientRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient repository for resolver: %w", err)
	}

	directoryRepo, err := c.DirectoryRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get directory repository for resolver: %w", err)
	}

	redisClient, err := c.Redis()
	if err != nil {
		return nil, fmt.Errorf("failed to get redis for resolver: %w", err)
	}

	var cache resolver.CountCache
	if redisClient != nil {
		cache = resolver.NewRedisCountCache(redisClient)
	}

	return resolver.NewResolver(
		txManager,
		directoryRepo,
		recipientRepo,
		communicationRepo,
		cache,
		c.config.RecipientCountCacheTTL,
		c.Logger(),
	), nil
}

// initSenders creates one batch sender per channel.
func (c *Container) initSenders() ([]communicationUseCase.ChannelSender, error) {
	logger := c.Logger()

	communicationRepo, err := c.CommunicationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get communication repository for senders: %w", err)
	}

	recipientRepo, err := c.RecipientRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient repository for senders: %w", err)
	}

	directoryRepo, err := c.DirectoryRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get directory repository for senders: %w", err)
	}

	deliveryMetrics, err := c.DeliveryMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery metrics for senders: %w", err)
	}

	client := &http.Client{Timeout: providerRequestTimeout}
	policy := retry.Policy{
		MaxAttempts: c.config.ProviderMaxAttempts,
		BaseDelay:   retry.DefaultBaseDelay,
		MaxDelay:    retry.DefaultMaxDelay,
	}

	if !c.config.PushConfigured() {
		logger.Warn("VAPID keys not configured, push delivery will be simulated")
	}
	if !c.config.EmailConfigured() {
		logger.Warn("RESEND_API_KEY not configured, email delivery will be simulated")
	}
	if !c.config.SMSConfigured() {
		logger.Warn("Twilio credentials not configured, sms delivery will be simulated")
	}

	deliverers := []struct {
		deliverer channel.Deliverer
		config    channel.Config
	}{
		{
			deliverer: channel.NewPushDeliverer(channel.PushConfig{
				VAPIDPublicKey:  c.config.VAPIDPublicKey,
				VAPIDPrivateKey: c.config.VAPIDPrivateKey,
				Subject:         c.config.VAPIDSubject,
				Retry:           policy,
			}, directoryRepo, client, logger),
			config: channel.Config{BatchSize: c.config.PushBatchSize, BatchDelay: c.config.PushBatchDelay},
		},
		{
			deliverer: channel.NewEmailDeliverer(channel.EmailConfig{
				APIKey:  c.config.ResendAPIKey,
				From:    c.config.ResendFrom,
				BaseURL: c.config.ResendBaseURL,
				Retry:   policy,
			}, client, logger),
			config: channel.Config{BatchSize: c.config.EmailBatchSize, BatchDelay: c.config.EmailBatchDelay},
		},
		{
			deliverer: channel.NewSMSDeliverer(channel.SMSConfig{
				AccountSID:        c.config.TwilioAccountSID,
				AuthToken:         c.config.TwilioAuthToken,
				From:              c.config.TwilioPhoneNumber,
				BaseURL:           c.config.TwilioBaseURL,
				StatusCallbackURL: strings.TrimRight(c.config.AppURL, "/") + "/v1/webhooks/sms",
				Retry:             policy,
			}, client, logger),
			config: channel.Config{BatchSize: c.config.SMSBatchSize, BatchDelay: c.config.SMSBatchDelay},
		},
	}

	senders := make([]communicationUseCase.ChannelSender, 0, len(deliverers))
	for _, d := range deliverers {
		d.config.Metrics = deliveryMetrics
		senders = append(senders, channel.NewBatchSender(
			d.deliverer,
			communicationRepo,
			recipientRepo,
			directoryRepo,
			d.config,
			logger,
		))
	}
	return senders, nil
}

// initDispatchUseCase creates the dispatch use case with all its dependencies.
func (c *Container) initDispatchUseCase() (communicationUseCase.DispatchUseCase, error) {
	communicationRepo, err := c.CommunicationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get communication repository for dispatch use case: %w", err)
	}

	recipientRepo, err := c.RecipientRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient repository for dispatch use case: %w", err)
	}

	recipientResolver, err := c.initResolver()
	if err != nil {
		return nil, fmt.Errorf("failed to get resolver for dispatch use case: %w", err)
	}

	senders, err := c.initSenders()
	if err != nil {
		return nil, fmt.Errorf("failed to get senders for dispatch use case: %w", err)
	}

	baseUseCase := communicationUseCase.NewDispatchUseCase(
		communicationUseCase.DispatchConfig{
			ConcurrentChannels: c.config.DispatchConcurrentChannels,
			DefaultTimeout:     c.config.DispatchDefaultTimeout,
		},
		communicationRepo,
		recipientRepo,
		recipientResolver,
		senders,
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for dispatch use case: %w", err)
		}
		return communicationUseCase.NewDispatchUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initRecipientUseCase creates the recipient use case with all its dependencies.
func (c *Container) initRecipientUseCase() (communicationUseCase.RecipientUseCase, error) {
	communicationRepo, err := c.CommunicationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get communication repository for recipient use case: %w", err)
	}

	recipientRepo, err := c.RecipientRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient repository for recipient use case: %w", err)
	}

	recipientResolver, err := c.initResolver()
	if err != nil {
		return nil, fmt.Errorf("failed to get resolver for recipient use case: %w", err)
	}

	return communicationUseCase.NewRecipientUseCase(communicationRepo, recipientRepo, recipientResolver), nil
}

// initScheduledUseCase creates the scheduled communications use case.
func (c *Container) initScheduledUseCase() (communicationUseCase.ScheduledUseCase, error) {
	communicationRepo, err := c.CommunicationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get communication repository for scheduled use case: %w", err)
	}

	dispatchUseCase, err := c.DispatchUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatch use case for scheduled use case: %w", err)
	}

	baseUseCase := communicationUseCase.NewScheduledUseCase(
		communicationUseCase.SchedulerConfig{
			Interval:  c.config.SchedulerInterval,
			BatchSize: c.config.SchedulerBatchSize,
		},
		communicationRepo,
		dispatchUseCase,
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for scheduled use case: %w", err)
		}
		return communicationUseCase.NewScheduledUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initTrackingUseCase creates the delivery tracking use case.
func (c *Container) initTrackingUseCase() (communicationUseCase.TrackingUseCase, error) {
	communicationRepo, err := c.CommunicationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get communication repository for tracking use case: %w", err)
	}

	recipientRepo, err := c.RecipientRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient repository for tracking use case: %w", err)
	}

	return communicationUseCase.NewTrackingUseCase(communicationRepo, recipientRepo, c.Logger()), nil
}

// initCommunicationHandler creates the communication HTTP handler with all its dependencies.
func (c *Container) initCommunicationHandler() (*communicationHTTP.CommunicationHandler, error) {
	dispatchUseCase, err := c.DispatchUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatch use case for communication handler: %w", err)
	}

	recipientUseCase, err := c.RecipientUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient use case for communication handler: %w", err)
	}

	scheduledUseCase, err := c.ScheduledUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled use case for communication handler: %w", err)
	}

	return communicationHTTP.NewCommunicationHandler(
		dispatchUseCase,
		recipientUseCase,
		scheduledUseCase,
		c.Logger(),
	), nil
}

// initWebhookHandler creates the provider webhook handler.
func (c *Container) initWebhookHandler() (*communicationHTTP.WebhookHandler, error) {
	trackingUseCase, err := c.TrackingUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking use case for webhook handler: %w", err)
	}

	return communicationHTTP.NewWebhookHandler(
		trackingUseCase,
		communicationHTTP.WebhookConfig{
			PublicURL:    c.config.AppURL,
			TwilioSecret: c.config.TwilioWebhookSecret,
			ResendSecret: c.config.ResendWebhookSecret,
		},
		c.Logger(),
	), nil
}
