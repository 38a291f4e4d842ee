package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS stations (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    code        TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL DEFAULT '',
    kind        TEXT NOT NULL DEFAULT 'origin',
    parent_id   INTEGER REFERENCES stations(id),
    enabled     INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_stations_parent ON stations(parent_id);

CREATE TABLE IF NOT EXISTS drivers (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    phone       TEXT NOT NULL DEFAULT '',
    enabled     INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS vehicles (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    plate_no    TEXT NOT NULL UNIQUE,
    capacity_kg REAL NOT NULL DEFAULT 0,
    enabled     INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS work_windows (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    driver_id   INTEGER NOT NULL REFERENCES drivers(id),
    vehicle_id  INTEGER NOT NULL REFERENCES vehicles(id),
    station_id  INTEGER NOT NULL REFERENCES stations(id),
    starts_at   TEXT NOT NULL,
    ends_at     TEXT NOT NULL,
    approved    INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_windows_driver ON work_windows(driver_id, starts_at);

CREATE TABLE IF NOT EXISTS queue_tokens (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    token_no      TEXT NOT NULL UNIQUE,
    station_id    INTEGER NOT NULL REFERENCES stations(id),
    vehicle_id    INTEGER NOT NULL REFERENCES vehicles(id),
    driver_id     INTEGER NOT NULL REFERENCES drivers(id),
    window_id     INTEGER NOT NULL REFERENCES work_windows(id),
    token_date    TEXT NOT NULL,
    seq           INTEGER NOT NULL,
    status        TEXT NOT NULL DEFAULT 'waiting',
    issued_at     TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    allocated_at  TEXT,
    expired_at    TEXT,
    expiry_reason TEXT NOT NULL DEFAULT '',
    trip_id       INTEGER,
    UNIQUE(station_id, token_date, seq)
);
CREATE INDEX IF NOT EXISTS idx_tokens_station_status ON queue_tokens(station_id, status, seq);
CREATE INDEX IF NOT EXISTS idx_tokens_driver_status ON queue_tokens(driver_id, status);

CREATE TABLE IF NOT EXISTS demand_requests (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    station_id            INTEGER NOT NULL REFERENCES stations(id),
    quantity_kg           REAL NOT NULL DEFAULT 0,
    priority              TEXT NOT NULL DEFAULT 'normal',
    status                TEXT NOT NULL DEFAULT 'pending',
    approved_at           TEXT,
    assignment_started_at TEXT,
    target_driver_id      INTEGER REFERENCES drivers(id),
    token_id              INTEGER REFERENCES queue_tokens(id),
    reject_reason         TEXT NOT NULL DEFAULT '',
    created_at            TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at            TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_requests_status ON demand_requests(status, approved_at);
CREATE INDEX IF NOT EXISTS idx_requests_station ON demand_requests(station_id);

CREATE TABLE IF NOT EXISTS trips (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    public_id           TEXT NOT NULL UNIQUE,
    request_id          INTEGER REFERENCES demand_requests(id),
    token_id            INTEGER NOT NULL REFERENCES queue_tokens(id),
    vehicle_id          INTEGER NOT NULL REFERENCES vehicles(id),
    driver_id           INTEGER NOT NULL REFERENCES drivers(id),
    origin_station_id   INTEGER NOT NULL REFERENCES stations(id),
    dest_station_id     INTEGER NOT NULL REFERENCES stations(id),
    status              TEXT NOT NULL DEFAULT 'accepted',
    step                INTEGER NOT NULL DEFAULT 1,
    meta                TEXT NOT NULL DEFAULT '{}',
    accepted_at         TEXT,
    origin_confirmed_at TEXT,
    departed_at         TEXT,
    arrived_at          TEXT,
    completed_at        TEXT,
    cancelled_at        TEXT,
    created_at          TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at          TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_trips_status ON trips(status);
CREATE INDEX IF NOT EXISTS idx_trips_driver ON trips(driver_id);

CREATE TABLE IF NOT EXISTS transfer_events (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_id            INTEGER NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
    kind               TEXT NOT NULL,
    meter_start        REAL NOT NULL DEFAULT 0,
    meter_end          REAL NOT NULL DEFAULT 0,
    pressure_start     REAL NOT NULL DEFAULT 0,
    pressure_end       REAL NOT NULL DEFAULT 0,
    operator_confirmed INTEGER NOT NULL DEFAULT 0,
    driver_confirmed   INTEGER NOT NULL DEFAULT 0,
    evidence_attached  INTEGER NOT NULL DEFAULT 0,
    started_at         TEXT,
    ended_at           TEXT,
    created_at         TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at         TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_transfer_trip ON transfer_events(trip_id, kind, id);

CREATE TABLE IF NOT EXISTS outbox (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    topic       TEXT NOT NULL,
    payload     BLOB NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    recipient   TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    sent_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type TEXT NOT NULL,
    entity_id   INTEGER NOT NULL DEFAULT 0,
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS admin_users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
`
