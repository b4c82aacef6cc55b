// Package config loads duduk.json and overlays it with the environment.
//
// A .env file next to duduk.json is loaded first; variables already set
// in the process win. Every field is optional.
//
// # Configuration File Structure
//
//	{
//	  "host": "0.0.0.0",
//	  "port": 8000,
//	  "dist": "dist",
//	  "shutdownTimeout": "30s",
//	  "trustedProxies": ["10.0.0.0/8"],
//	  "render": {
//	    "timeout": "10s",
//	    "programCache": 512
//	  },
//	  "modules": {
//	    "s3": {
//	      "bucket": "apps",
//	      "prefix": "site",
//	      "region": "eu-central-1"
//	    }
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "path": "/metrics"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "json"
//	  },
//	  "locales": {
//	    "default": "en"
//	  }
//	}
//
// # Environment
//
// HOST, PORT, DUDUK_DIST, DUDUK_SHUTDOWN_TIMEOUT, DUDUK_TRUSTED_PROXIES
// (semicolon separated), DUDUK_RENDER_TIMEOUT, DUDUK_PROGRAM_CACHE,
// DUDUK_S3_BUCKET, DUDUK_S3_PREFIX, DUDUK_S3_ENDPOINT, DUDUK_S3_PATH_STYLE,
// AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_SESSION_TOKEN,
// DUDUK_METRICS, DUDUK_METRICS_PATH, DUDUK_LOG_LEVEL, DUDUK_LOG_FORMAT and
// DUDUK_DEFAULT_LOCALE.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
