/*
The sync package keeps the Shibboleth configuration of every oxShibboleth
target in line with the files on the producer.

There are two ways of detecting changes:
 1. Polling -- The Reconciler walks the watched root on every tick, and
    compares the digest of each file with the digest seen on the previous
    tick. Changed files are copied to every target. When nothing changed but
    the fleet grew since the last pass, every file is copied to every target
    so that the new targets catch up.
 2. Events -- The EventHandler reacts to filesystem events for single files.
    No digests are kept, and targets that join later aren't brought up to
    date.

The state kept by the Reconciler lives in memory only. After a restart, the
first pass treats every file as changed.
*/
package sync
