package store

// Schema statements executed by EnsureSchema. Idempotent; no migration
// system is carried for this single-schema deployment.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS works (
		work_id BIGINT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		platform TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '',
		completion_status TEXT NOT NULL DEFAULT 'ongoing',
		reference_value TEXT NOT NULL DEFAULT '0',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS chapters (
		id BIGSERIAL PRIMARY KEY,
		work_id BIGINT NOT NULL,
		chapter_no TEXT NOT NULL,
		platform_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		is_vip BOOLEAN NOT NULL DEFAULT FALSE,
		requires_login BOOLEAN NOT NULL DEFAULT FALSE,
		content_length INT NOT NULL DEFAULT 0,
		fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (work_id, chapter_no)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chapters_work_id ON chapters (work_id)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id BIGSERIAL PRIMARY KEY,
		work_id BIGINT NOT NULL,
		dedup_hash TEXT NOT NULL UNIQUE,
		author_name TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		posted_at TEXT NOT NULL DEFAULT '',
		like_count INT NOT NULL DEFAULT 0,
		floor_no INT NOT NULL DEFAULT 0,
		chapter_id TEXT NOT NULL DEFAULT '',
		chapter_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_work_id ON comments (work_id)`,
	`CREATE TABLE IF NOT EXISTS crawl_status (
		id BIGSERIAL PRIMARY KEY,
		work_id BIGINT NOT NULL,
		crawl_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		item_count INT NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		last_attempt TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (work_id, crawl_type)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_crawl_status_status ON crawl_status (status)`,
	`CREATE TABLE IF NOT EXISTS crawl_files (
		id BIGSERIAL PRIMARY KEY,
		work_id BIGINT NOT NULL,
		file_name TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		size_bytes INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (work_id, file_name)
	)`,
}
