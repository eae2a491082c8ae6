// Package logger builds *slog.Logger instances for the service and provides
// attribute helpers so log keys stay consistent across packages.
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "snipflow"),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.WarnContext(ctx, "quota exceeded",
//	    logger.PrincipalID(id),
//	    logger.Resource("snippets"),
//	)
//
// API keys are only ever logged through KeyPrefix.
package logger
