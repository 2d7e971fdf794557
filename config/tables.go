package config

type (
	//TableCfg is the container for other table config sections
	TableCfg struct {
		Log       LogTableCfg
		Structure StructureTableCfg
	}

	//LogTableCfg contains the configuration for logging
	LogTableCfg struct {
		LogTable string `default:"logs"`
	}

	//StructureTableCfg contains the names of the capture collections
	StructureTableCfg struct {
		PacketTable      string `default:"packets"`
		HTTPRequestTable string `default:"http_requests"`
		SystemInfoTable  string `default:"system_info"`
	}
)

// Collections lists every collection the capture pipeline writes to
func (t TableCfg) Collections() []string {
	return []string{
		t.Structure.PacketTable,
		t.Structure.HTTPRequestTable,
		t.Structure.SystemInfoTable,
	}
}
