package parser

import "testing"

func BenchmarkClassify_DML(b *testing.B) {
	sql := "-- ticket 42\nUPDATE users SET name = 'test' WHERE id = 1;"
	for i := 0; i < b.N; i++ {
		_, _ = Classify(sql)
	}
}

func BenchmarkClassify_LongDDL(b *testing.B) {
	sql := `ALTER TABLE users
		ADD COLUMN email VARCHAR(255) NOT NULL DEFAULT '',
		ADD INDEX idx_email (email),
		MODIFY COLUMN status INT DEFAULT 0`
	for i := 0; i < b.N; i++ {
		_, _ = Classify(sql)
	}
}

func BenchmarkTargetTables_Join(b *testing.B) {
	sql := "UPDATE orders o JOIN customers c ON o.cid = c.id SET o.flag = 1 WHERE c.vip = 1"
	for i := 0; i < b.N; i++ {
		_ = TargetTables(sql)
	}
}
