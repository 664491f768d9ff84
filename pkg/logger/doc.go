// Package logger builds *slog.Logger instances with functional options and
// injects request-scoped attributes (request id, tenant id) pulled from the
// context on every record.
//
// New picks a text or JSON handler, masks credential attributes such as
// secret_key and signature, and runs the registered ContextExtractor
// callbacks on every record. Attribute helpers in attr.go keep key names
// consistent across packages.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.AppEnv, cfg.ServiceName),
//		logger.WithContextExtractors(requestid.LoggerExtractor(), tenant.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "subscription activated", logger.Reference(ref), logger.Plan(plan))
package logger
