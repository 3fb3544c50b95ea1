package config

// Config is the top-level YAML structure shared by the server and the
// emitter; each binary reads only its own sections.
type Config struct {
	Server  ServerConf  `yaml:"server"`
	Store   StoreConf   `yaml:"store"`
	Emitter EmitterConf `yaml:"emitter"`
}

// ServerConf configures the ingestion/query service.
type ServerConf struct {
	ListenAddr  string `yaml:"listen_addr"`
	EmitterAddr string `yaml:"emitter_addr"`

	// ServeAfterStreamEnd keeps the query API up after the producer closes
	// the stream gracefully. Off by default: the conservative choice is to
	// shut down once no further events can arrive.
	ServeAfterStreamEnd bool `yaml:"serve_after_stream_end"`

	// Reconnect redials the emitter after an abrupt connection loss. The
	// supervisor itself never reconnects; this drives the outer loop in
	// cmd/server.
	Reconnect          bool `yaml:"reconnect"`
	ReconnectBackoffMs int  `yaml:"reconnect_backoff_ms"`

	WriteQueueDepth int `yaml:"write_queue_depth"`
}

// StoreConf selects and configures the record store.
type StoreConf struct {
	Driver string `yaml:"driver"` // "sqlite3" or "postgres"
	DSN    string `yaml:"dsn"`

	// SkipReset leaves previously recorded events in place at service
	// start. Off by default: a fresh run starts from an empty table.
	SkipReset bool `yaml:"skip_reset"`
}

// LatLng is one corner of the spawn bounding box.
type LatLng struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// SpawnBox bounds where the emitter spawns new trips.
type SpawnBox struct {
	NE LatLng `yaml:"ne"`
	SW LatLng `yaml:"sw"`
}

// EmitterConf holds the trip simulation parameters. All of these may be
// hot-reloaded while the emitter runs.
type EmitterConf struct {
	ListenAddr       string   `yaml:"listen_addr"`
	WarmupMs         int      `yaml:"warmup_ms"`
	UpdateIntervalMs int      `yaml:"update_interval_ms"`
	ConcurrentTrips  int      `yaml:"concurrent_trips"`
	EndProbability   float64  `yaml:"end_probability"`
	MinFare          int      `yaml:"min_fare"`
	MaxFare          int      `yaml:"max_fare"`
	Spawn            SpawnBox `yaml:"spawn"`
}
