// Package crawler drives the weekly leaderboard crawl: it walks the weeks in
// one browser session, waits for lazily rendered content, retries pages whose
// product list is slow to appear, optionally gathers comments from detail
// pages, and hands every product to a Sink.
package crawler
