// Package logger expone un logger Zap singleton con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: una instancia global inicializada con Init().
//   - Scoping: cada request lleva su propio logger con request_id, user_id y
//     provider sin crear un core nuevo.
//   - Entornos: "dev" usa consola con colores, "prod" usa JSON con sampling.
//     LOG_FORMAT fuerza uno u otro.
//
// # Uso
//
// En main:
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Format: cfg.App.LogFormat})
//	defer logger.Sync()
//
// En services/controllers:
//
//	log := logger.From(ctx).With(logger.Component("linking"))
//	log.Info("external login linked", logger.UserID(id), logger.Provider(name))
package logger
