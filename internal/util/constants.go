package util

// 存储驱动
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// 缓存键前缀
const (
	CacheKeyAssessment = "assessment:%d"
	CacheKeyRules      = "assessment:%d:rules"
	CacheKeyQuestions  = "assessment:%d:questions"
)
