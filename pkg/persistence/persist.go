package persistence

// PersistRecord queues a record append on the worker channel (fire-and-forget).
func PersistRecord(sessionID, actorKey string, blob []byte, persistenceChannel chan<- *Request) {
	if persistenceChannel == nil || sessionID == "" || actorKey == "" {
		return
	}

	persistenceChannel <- &Request{
		Operation: OpAppendRecord,
		Data:      &RecordRequest{SessionID: sessionID, ActorKey: actorKey, Blob: blob},
	}
}

// PersistSessionStatus queues a session status update (fire-and-forget).
func PersistSessionStatus(sessionID, status string, persistenceChannel chan<- *Request) {
	if persistenceChannel == nil || sessionID == "" {
		return
	}

	persistenceChannel <- &Request{
		Operation: OpUpdateSessionStatus,
		Data:      &StatusRequest{SessionID: sessionID, Status: status},
	}
}
