package corestore

import "github.com/fslcore/fsl/internal/corecontext"

// repositorySchema creates the permanent, content-addressed tables that
// live in the repository database: blob storage, the event/tag/filename
// crosslink tables, and configuration key-value storage (§3.1, §4.4).
const repositorySchema = `
CREATE TABLE IF NOT EXISTS repository.blob(
  rid INTEGER PRIMARY KEY,
  rcvid INTEGER,
  size INTEGER,
  uuid TEXT UNIQUE,
  content BLOB,
  ingest_taint INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS repository.blob_uuid_idx ON blob(uuid);

CREATE TABLE IF NOT EXISTS repository.delta(
  rid INTEGER PRIMARY KEY REFERENCES blob,
  srcid INTEGER NOT NULL REFERENCES blob
);
CREATE INDEX IF NOT EXISTS repository.delta_srcid_idx ON delta(srcid);

CREATE TABLE IF NOT EXISTS repository.shun(
  uuid TEXT PRIMARY KEY,
  mtime INTEGER,
  reason TEXT
);

CREATE TABLE IF NOT EXISTS repository.phantom(
  rid INTEGER PRIMARY KEY REFERENCES blob
);

CREATE TABLE IF NOT EXISTS repository.event(
  type TEXT,
  mtime REAL,
  objid INTEGER REFERENCES blob,
  user TEXT,
  comment TEXT,
  bgcolor TEXT,
  euser TEXT,
  ecomment TEXT,
  omtime REAL
);
CREATE INDEX IF NOT EXISTS repository.event_mtime_idx ON event(mtime);
CREATE INDEX IF NOT EXISTS repository.event_objid_idx ON event(objid);

CREATE TABLE IF NOT EXISTS repository.plink(
  pid INTEGER REFERENCES blob,
  cid INTEGER REFERENCES blob,
  isprim INTEGER,
  mtime REAL,
  baseid INTEGER,
  PRIMARY KEY(pid, cid)
);
CREATE INDEX IF NOT EXISTS repository.plink_cid_idx ON plink(cid);

CREATE TABLE IF NOT EXISTS repository.tag(
  tagid INTEGER PRIMARY KEY,
  tagname TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS repository.tagxref(
  tagid INTEGER REFERENCES tag,
  tagtype INTEGER,
  srcid INTEGER REFERENCES blob,
  origid INTEGER REFERENCES blob,
  value TEXT,
  mtime REAL,
  rid INTEGER REFERENCES blob,
  PRIMARY KEY(tagid, rid)
);

CREATE TABLE IF NOT EXISTS repository.filename(
  fnid INTEGER PRIMARY KEY,
  name TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS repository.mlink(
  mid INTEGER REFERENCES blob,
  fnid INTEGER REFERENCES filename,
  pid INTEGER,
  fid INTEGER,
  pfnid INTEGER,
  perm INTEGER,
  isaux INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS repository.mlink_mid_idx ON mlink(mid);
CREATE INDEX IF NOT EXISTS repository.mlink_fnid_idx ON mlink(fnid);

CREATE TABLE IF NOT EXISTS repository.config(
  name TEXT PRIMARY KEY,
  value TEXT,
  mtime INTEGER
);
`

// localSchema creates the per-checkout working-directory tracking tables:
// the vfile table (§4.6) and the single-row vvar table recording the
// checked-out version.
const localSchema = `
CREATE TABLE IF NOT EXISTS localdb.vvar(
  name TEXT PRIMARY KEY,
  value TEXT
);

CREATE TABLE IF NOT EXISTS localdb.vfile(
  id INTEGER PRIMARY KEY,
  vid INTEGER,
  chnged INTEGER DEFAULT 0,
  deleted INTEGER DEFAULT 0,
  isexe INTEGER DEFAULT 0,
  islink INTEGER DEFAULT 0,
  rid INTEGER DEFAULT 0,
  mrid INTEGER DEFAULT 0,
  pathname TEXT,
  origname TEXT,
  mtime INTEGER,
  hash TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS localdb.vfile_pathname_idx ON vfile(pathname, vid);
`

// configSchema creates the global per-user configuration key-value store.
const configSchema = `
CREATE TABLE IF NOT EXISTS configdb.global_config(
  name TEXT PRIMARY KEY,
  value TEXT
);
`

// InstallRepositorySchema creates the repository-database tables if they
// do not already exist. Safe to call on every open.
func (s *Store) InstallRepositorySchema() error {
	if !s.IsAttached(SchemaRepository) {
		return corecontext.New(corecontext.KindMisuse, "repository schema not attached")
	}
	return s.execScript(repositorySchema)
}

// InstallLocalSchema creates the checkout-database tracking tables.
func (s *Store) InstallLocalSchema() error {
	if !s.IsAttached(SchemaLocal) {
		return corecontext.New(corecontext.KindMisuse, "local schema not attached")
	}
	return s.execScript(localSchema)
}

// InstallConfigSchema creates the global config key-value table.
func (s *Store) InstallConfigSchema() error {
	if !s.IsAttached(SchemaConfig) {
		return corecontext.New(corecontext.KindMisuse, "config schema not attached")
	}
	return s.execScript(configSchema)
}

func (s *Store) execScript(script string) error {
	if _, err := s.db.Exec(script); err != nil {
		return corecontext.Wrap(corecontext.KindDB, "install schema", err)
	}
	return nil
}
