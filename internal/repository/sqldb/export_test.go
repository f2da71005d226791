package sqldb

func SetAfterConflict(r *QueueRepository, fn func()) { r.afterConflict = fn }
