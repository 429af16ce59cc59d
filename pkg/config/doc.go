/*
Package config loads redacter run configuration from disk and the environment.

	     redacter.{yaml,json,toml,hcl}        environment / .env
	                  |                              |
	         +--------+--------+            +--------+--------+
	         |     Parser      |            |  Credentials    |
	         | (by extension)  |            | (caarlos0/env)  |
	         +--------+--------+            +--------+--------+
	                  |                              |
	         +--------+--------+                     |
	         |  Validate       |                     |
	         |  (defaults)     |                     |
	         +--------+--------+                     |
	                  |                              |
	         +--------+--------+            +--------+--------+
	         |  Resolve -> Run |            |  Settings       |
	         +-----------------+            +-----------------+

🎯 Purpose:
- Every cp flag has a config key; flags the user sets win over the file
- Backend credentials come from the environment and are never read from files
- Values such as "64KiB", "10rps" and "text/plain=*.log" are parsed once

🔄 Flow:
1. GetParser picks a parser from the file extension
2. The parser decodes into Config and rejects unknown keys
3. Validate fills defaults and checks that every value parses
4. Resolve turns the strings into the types the engine consumes

🔍 Example:

	cfg, err := config.Load(ctx, "redacter.yaml")
	if err != nil {
		return err
	}
	run, err := cfg.Resolve()
	if err != nil {
		return err
	}
	creds, err := config.LoadCredentials(ctx)
	if err != nil {
		return err
	}
	backends, err := redact.NewAll(ctx, run.Backends, cfg.Settings(creds))
*/
package config
