// Package api serves the health and status HTTP endpoints of an evmsync
// process; it has no endpoints for querying indexed events.
// @title evmsync API
// @version 1.0
// @description Health and status endpoints for the evmsync indexing pipeline
// @contact.name API Support
// @contact.url https://github.com/riftline/evmsync
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @basePath /
// @schemes http https
// @x-logo {"url":"https://github.com/riftline/evmsync/raw/main/logo.png"}
package api
