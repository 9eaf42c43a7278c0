// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"github.com/IvanKorch1289/client-analyze-agent/internal/config"
	"github.com/IvanKorch1289/client-analyze-agent/services/httpcore"
	"github.com/IvanKorch1289/client-analyze-agent/services/providers"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
)

// An empty base URL disables the provider: its client is still built (the
// Collector fans out to every client unconditionally) but every call short
// circuits, matching a provider configuration failing-soft rather than
// the whole session failing to construct.

func providersRegistryClient(h *httpcore.Client, repo storage.Repository, cfg config.Config) *providers.RegistryClient {
	return providers.NewRegistryClient(h, repo, cfg.RegistryBaseURL, cfg.TimeoutRegistry, cfg.TTLRegistry)
}

func providersCourtClient(h *httpcore.Client, repo storage.Repository, cfg config.Config) *providers.CourtClient {
	return providers.NewCourtClient(h, repo, cfg.CourtBaseURL, cfg.TimeoutCourt, cfg.TTLCourt)
}

func providersAnalyticsClient(h *httpcore.Client, repo storage.Repository, cfg config.Config) *providers.AnalyticsClient {
	return providers.NewAnalyticsClient(h, repo, cfg.AnalyticsBaseURL, cfg.TimeoutAnalytics, cfg.TTLAnalytics)
}

func providersSearchClient(h *httpcore.Client, repo storage.Repository, cfg config.Config) *providers.SearchClient {
	return providers.NewSearchClient(h, repo, providers.SearchBasic, cfg.SearchBasicURL, cfg.TimeoutSearchBasic, cfg.TTLSearch, 10)
}

func providersSearchDeepClient(h *httpcore.Client, repo storage.Repository, cfg config.Config) *providers.SearchClient {
	return providers.NewSearchClient(h, repo, providers.SearchDeep, cfg.SearchDeepURL, cfg.TimeoutSearchDeep, cfg.TTLSearch, 30)
}
