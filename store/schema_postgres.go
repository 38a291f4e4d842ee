package store

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS stations (
    id          BIGSERIAL PRIMARY KEY,
    code        TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL DEFAULT '',
    kind        TEXT NOT NULL DEFAULT 'origin',
    parent_id   BIGINT REFERENCES stations(id),
    enabled     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_stations_parent ON stations(parent_id);

CREATE TABLE IF NOT EXISTS drivers (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    phone       TEXT NOT NULL DEFAULT '',
    enabled     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS vehicles (
    id          BIGSERIAL PRIMARY KEY,
    plate_no    TEXT NOT NULL UNIQUE,
    capacity_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
    enabled     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS work_windows (
    id          BIGSERIAL PRIMARY KEY,
    driver_id   BIGINT NOT NULL REFERENCES drivers(id),
    vehicle_id  BIGINT NOT NULL REFERENCES vehicles(id),
    station_id  BIGINT NOT NULL REFERENCES stations(id),
    starts_at   TIMESTAMPTZ NOT NULL,
    ends_at     TIMESTAMPTZ NOT NULL,
    approved    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_windows_driver ON work_windows(driver_id, starts_at);

CREATE TABLE IF NOT EXISTS queue_tokens (
    id            BIGSERIAL PRIMARY KEY,
    token_no      TEXT NOT NULL UNIQUE,
    station_id    BIGINT NOT NULL REFERENCES stations(id),
    vehicle_id    BIGINT NOT NULL REFERENCES vehicles(id),
    driver_id     BIGINT NOT NULL REFERENCES drivers(id),
    window_id     BIGINT NOT NULL REFERENCES work_windows(id),
    token_date    TEXT NOT NULL,
    seq           INTEGER NOT NULL,
    status        TEXT NOT NULL DEFAULT 'waiting',
    issued_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    allocated_at  TIMESTAMPTZ,
    expired_at    TIMESTAMPTZ,
    expiry_reason TEXT NOT NULL DEFAULT '',
    trip_id       BIGINT,
    UNIQUE(station_id, token_date, seq)
);
CREATE INDEX IF NOT EXISTS idx_tokens_station_status ON queue_tokens(station_id, status, seq);
CREATE INDEX IF NOT EXISTS idx_tokens_driver_status ON queue_tokens(driver_id, status);

CREATE TABLE IF NOT EXISTS demand_requests (
    id                    BIGSERIAL PRIMARY KEY,
    station_id            BIGINT NOT NULL REFERENCES stations(id),
    quantity_kg           DOUBLE PRECISION NOT NULL DEFAULT 0,
    priority              TEXT NOT NULL DEFAULT 'normal',
    status                TEXT NOT NULL DEFAULT 'pending',
    approved_at           TIMESTAMPTZ,
    assignment_started_at TIMESTAMPTZ,
    target_driver_id      BIGINT REFERENCES drivers(id),
    token_id              BIGINT REFERENCES queue_tokens(id),
    reject_reason         TEXT NOT NULL DEFAULT '',
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_requests_status ON demand_requests(status, approved_at);
CREATE INDEX IF NOT EXISTS idx_requests_station ON demand_requests(station_id);

CREATE TABLE IF NOT EXISTS trips (
    id                  BIGSERIAL PRIMARY KEY,
    public_id           TEXT NOT NULL UNIQUE,
    request_id          BIGINT REFERENCES demand_requests(id),
    token_id            BIGINT NOT NULL REFERENCES queue_tokens(id),
    vehicle_id          BIGINT NOT NULL REFERENCES vehicles(id),
    driver_id           BIGINT NOT NULL REFERENCES drivers(id),
    origin_station_id   BIGINT NOT NULL REFERENCES stations(id),
    dest_station_id     BIGINT NOT NULL REFERENCES stations(id),
    status              TEXT NOT NULL DEFAULT 'accepted',
    step                INTEGER NOT NULL DEFAULT 1,
    meta                JSONB NOT NULL DEFAULT '{}',
    accepted_at         TIMESTAMPTZ,
    origin_confirmed_at TIMESTAMPTZ,
    departed_at         TIMESTAMPTZ,
    arrived_at          TIMESTAMPTZ,
    completed_at        TIMESTAMPTZ,
    cancelled_at        TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_trips_status ON trips(status);
CREATE INDEX IF NOT EXISTS idx_trips_driver ON trips(driver_id);

CREATE TABLE IF NOT EXISTS transfer_events (
    id                 BIGSERIAL PRIMARY KEY,
    trip_id            BIGINT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
    kind               TEXT NOT NULL,
    meter_start        DOUBLE PRECISION NOT NULL DEFAULT 0,
    meter_end          DOUBLE PRECISION NOT NULL DEFAULT 0,
    pressure_start     DOUBLE PRECISION NOT NULL DEFAULT 0,
    pressure_end       DOUBLE PRECISION NOT NULL DEFAULT 0,
    operator_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    driver_confirmed   BOOLEAN NOT NULL DEFAULT FALSE,
    evidence_attached  BOOLEAN NOT NULL DEFAULT FALSE,
    started_at         TIMESTAMPTZ,
    ended_at           TIMESTAMPTZ,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transfer_trip ON transfer_events(trip_id, kind, id);

CREATE TABLE IF NOT EXISTS outbox (
    id          BIGSERIAL PRIMARY KEY,
    topic       TEXT NOT NULL,
    payload     BYTEA NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    recipient   TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_log (
    id          BIGSERIAL PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity_id   BIGINT NOT NULL DEFAULT 0,
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS admin_users (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
