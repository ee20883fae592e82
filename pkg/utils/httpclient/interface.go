/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package httpclient

import "net/http"

// Interface abstracts the HTTP client for callers and tests.
type Interface interface {
	Get(url string, headers ...string) (*Result, error)
	Post(url string, body interface{}, headers ...string) (*Result, error)
	Put(url string, body interface{}, headers ...string) (*Result, error)
	Delete(url string, headers ...string) (*Result, error)
	Do(req *http.Request) (*Result, error)
}
