// Trackcore - Paragliding competition live-tracking ingestion backbone
package config

import "fmt"

// Validate checks that required configuration is present and internally
// consistent before the server starts accepting connections.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateWriter(); err != nil {
		return err
	}
	if err := c.validateGPSTCP(); err != nil {
		return err
	}
	if err := c.validateFanout(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.PrimaryDSN == "" {
		return fmt.Errorf("store.primary_dsn is required")
	}
	if c.Store.MaxConns <= 0 {
		return fmt.Errorf("store.max_conns must be positive")
	}
	if c.Store.MinConns < 0 || c.Store.MinConns > c.Store.MaxConns {
		return fmt.Errorf("store.min_conns must be between 0 and max_conns")
	}
	if c.Store.RetentionAfter <= 0 {
		return fmt.Errorf("store.retention_after must be positive")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.Addr == "" {
		return fmt.Errorf("queue.addr is required")
	}
	if c.Queue.MaxConns <= 0 {
		return fmt.Errorf("queue.max_conns must be positive")
	}
	return nil
}

func (c *Config) validateWriter() error {
	if c.Writer.BatchSize <= 0 || c.Writer.BatchSize > 1000 {
		return fmt.Errorf("writer.batch_size must be between 1 and 1000")
	}
	if c.Writer.MaxRetries <= 0 {
		return fmt.Errorf("writer.max_retries must be positive")
	}
	return nil
}

func (c *Config) validateGPSTCP() error {
	if c.GPSTCP.Addr == "" {
		return fmt.Errorf("gpstcp.addr is required")
	}
	if c.GPSTCP.MaxConnections <= 0 {
		return fmt.Errorf("gpstcp.max_connections must be positive")
	}
	if c.GPSTCP.MaxConnectionsPerIP <= 0 || c.GPSTCP.MaxConnectionsPerIP > c.GPSTCP.MaxConnections {
		return fmt.Errorf("gpstcp.max_connections_per_ip must be between 1 and max_connections")
	}
	return nil
}

func (c *Config) validateFanout() error {
	if c.Fanout.UpdateInterval <= 0 {
		return fmt.Errorf("fanout.update_interval must be positive")
	}
	if c.Fanout.DelaySeconds < 0 {
		return fmt.Errorf("fanout.delay_seconds cannot be negative")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("security.rate_limit_rps must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
